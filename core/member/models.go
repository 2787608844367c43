package member

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/masjidku/backend/core"
)

// Roles. A member holds at most one; absence of a role is a valid state
// ("unauthorized"), not an error.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleBendahara Role = "bendahara" // treasurer
	RoleJamaah    Role = "jamaah"    // congregant
)

var AllRoles = []Role{RoleAdmin, RoleBendahara, RoleJamaah}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Approval statuses. Only jamaah accounts go through the approval gate;
// admin and bendahara are implicitly exempt.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Member struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         Role      `json:"role,omitempty"` // empty: no role assigned
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login"` // UTC
}

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

func (m *Member) HasRole() bool     { return m.Role.Valid() }
func (m *Member) IsAdmin() bool     { return m.Role == RoleAdmin }
func (m *Member) IsBendahara() bool { return m.Role == RoleBendahara }
func (m *Member) IsJamaah() bool    { return m.Role == RoleJamaah }

type Profile struct {
	MemberID  string      `json:"member_id"`
	FullName  string      `json:"full_name"`
	Phone     null.String `json:"phone"`
	Address   null.String `json:"address"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

func (p *Profile) Approved() bool { return p.Status == StatusApproved }

// NewMember contains information needed to register a new Member.
// Self-registration always yields a jamaah with a pending profile.
type NewMember struct {
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"full_name" validate:"required"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nm *NewMember) Validate(svc Service) error {
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.FullName = core.CleanString(nm.FullName)
	nm.Phone = core.CleanString(nm.Phone)
	nm.Address = core.CleanString(nm.Address)

	if err := core.Validate.Struct(nm); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nm.Email)
}

// UpdateProfile defines what a member may change on their own profile.
// Status is deliberately absent; only admin operations move it.
type UpdateProfile struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func (up *UpdateProfile) Validate(orig Profile) error {
	name := core.CleanString(up.FullName)
	if name != "" {
		up.FullName = name
	} else {
		up.FullName = orig.FullName
	}
	up.Phone = core.CleanString(up.Phone)
	up.Address = core.CleanString(up.Address)
	return core.Validate.Struct(up)
}

// ResetMemberPassword carries a password reset confirmation. UID and Token
// come from the emailed reset link.
type ResetMemberPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetMemberPassword) Validate() error { return core.Validate.Struct(rp) }

// AssignRole is the admin operation that grants or changes a member's role.
type AssignRole struct {
	Role Role `json:"role" validate:"required,memberrole"`
}

func (ar *AssignRole) Validate() error { return core.Validate.Struct(ar) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []Role    `query:"role"`
	Statuses    []Status  `query:"status"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Statuses == nil &&
		qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
