package member

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/masjidku/backend/core"
)

var (
	// errors
	ErrNotFound        = errors.New("member not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoRole          = errors.New("no role assigned")
	ErrEmailExists     = errors.New("a member with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excluded ...Member) error
		CreateMember(ctx context.Context, m Member, p Profile) (Member, error)
		GetMemberByID(ctx context.Context, id string) (Member, error)
		GetMemberByEmail(ctx context.Context, email string) (Member, error)
		QueryAllMembers(ctx context.Context) ([]Member, error)
		// FilterMembers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Member.Email or Profile.FullName.
		FilterMembers(ctx context.Context, filter QueryFilter) ([]Member, error)
		SetMemberRole(ctx context.Context, id string, role Role) (Member, error)
		SetLastLogin(ctx context.Context, m Member) (Member, error)
		SetPassword(ctx context.Context, id string, hash []byte) error
		DeleteMembersByID(ctx context.Context, ids ...string) error

		// GetRole returns ErrNoRole when the member exists without a role;
		// absence of a role is a state, not a failure.
		GetRole(ctx context.Context, principalID string) (Role, error)
		GetProfile(ctx context.Context, principalID string) (Profile, error)
		SaveProfile(ctx context.Context, principalID string, up UpdateProfile) (Profile, error)
		SetProfileStatus(ctx context.Context, principalID string, status Status) (Profile, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc Service) CheckEmailUniqueness(email string, excluded ...Member) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excluded...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a jamaah member with a pending profile and sends
// the welcome email. Approval is a separate admin operation.
func (svc Service) Register(ctx context.Context, nm NewMember) (Member, error) {
	now := time.Now().UTC()
	m := Member{
		Email:     nm.Email,
		Role:      RoleJamaah,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.SetPassword(nm.Password); err != nil {
		return Member{}, err
	}
	p := Profile{
		FullName:  nm.FullName,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Phone.SetValid(nm.Phone)
	p.Address.SetValid(nm.Address)

	m, err := svc.repo.CreateMember(ctx, m, p)
	if err != nil {
		return Member{}, err
	}
	svc.sendMail(m, p.FullName, "Selamat datang di "+svc.conf.AppName, "welcome")
	return m, nil
}

func (svc Service) QueryAll(ctx context.Context) ([]Member, error) {
	return svc.repo.QueryAllMembers(ctx)
}

func (svc Service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMemberByID(ctx, id)
}

func (svc Service) GetByEmail(ctx context.Context, email string) (Member, error) {
	return svc.repo.GetMemberByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc Service) Filter(ctx context.Context, filter QueryFilter) ([]Member, error) {
	return svc.repo.FilterMembers(ctx, filter)
}

func (svc Service) GetProfile(ctx context.Context, principalID string) (Profile, error) {
	return svc.repo.GetProfile(ctx, principalID)
}

func (svc Service) UpdateProfile(ctx context.Context, principalID string, up UpdateProfile) (Profile, error) {
	return svc.repo.SaveProfile(ctx, principalID, up)
}

// Approve clears the approval gate for a jamaah and notifies them by email.
// The row change also flows through the live channel to any open session.
func (svc Service) Approve(ctx context.Context, principalID string) (Profile, error) {
	return svc.setStatus(ctx, principalID, StatusApproved,
		"Pendaftaran disetujui", "account_approved")
}

func (svc Service) Reject(ctx context.Context, principalID string) (Profile, error) {
	return svc.setStatus(ctx, principalID, StatusRejected,
		"Pendaftaran ditolak", "account_rejected")
}

func (svc Service) setStatus(ctx context.Context, principalID string, status Status, subject, tmpl string) (Profile, error) {
	p, err := svc.repo.SetProfileStatus(ctx, principalID, status)
	if err != nil {
		return Profile{}, err
	}
	if m, mErr := svc.repo.GetMemberByID(ctx, principalID); mErr == nil {
		svc.sendMail(m, p.FullName, subject, tmpl)
	}
	return p, nil
}

func (svc Service) AssignRole(ctx context.Context, principalID string, role Role) (Member, error) {
	return svc.repo.SetMemberRole(ctx, principalID, role)
}

func (svc Service) SetLastLogin(ctx context.Context, m Member) (Member, error) {
	return svc.repo.SetLastLogin(ctx, m)
}

func (svc Service) SetPassword(ctx context.Context, id, pwd string) error {
	var m Member
	if err := m.SetPassword(pwd); err != nil {
		return err
	}
	return svc.repo.SetPassword(ctx, id, m.PasswordHash)
}

// RequestPasswordReset emails a reset link to the member. The caller decides
// what to disclose to the requester; ErrNotFound must not leak to them.
func (svc Service) RequestPasswordReset(ctx context.Context, email string) error {
	m, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := MakeToken(svc.conf, m)
	if err != nil {
		return err
	}

	name := m.Email
	if p, pErr := svc.repo.GetProfile(ctx, m.ID); pErr == nil {
		name = p.FullName
	}
	svc.sendMail(m, name, "Atur ulang kata sandi "+svc.conf.AppName, "password_reset",
		passwordResetData{Name: name, UID: EncodeUID(m), Token: token})
	return nil
}

// ResetPassword validates the emailed token and sets the new password.
func (svc Service) ResetPassword(ctx context.Context, rp ResetMemberPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	m, err := svc.repo.GetMemberByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(svc.conf, m, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	return svc.SetPassword(ctx, m.ID, rp.Password)
}

func (svc Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteMembersByID(ctx, ids...)
}

type passwordResetData struct {
	Name  string
	UID   string
	Token string
}

func (svc Service) sendMail(m Member, name, subject, tmpl string, data ...interface{}) {
	if svc.mailSvc == nil {
		return
	}
	var d interface{} = name
	if len(data) > 0 {
		d = data[0]
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: m.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: core.ContextData{
			AppName:         svc.conf.AppName,
			FrontendBaseURL: svc.conf.FrontendBaseURL,
			Data:            d,
		},
	})
}
