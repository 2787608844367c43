package donation

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/masjidku/backend/core"
)

var ErrNotFound = errors.New("donation not found")

// Kinds of donation accepted by the portal.
type Kind string

const (
	KindInfaq   Kind = "infaq"
	KindZakat   Kind = "zakat"
	KindSedekah Kind = "sedekah"
)

var AllKinds = []Kind{KindInfaq, KindZakat, KindSedekah}

func (k Kind) Valid() bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

type Donation struct {
	ID         string      `json:"id"`
	MemberID   string      `json:"member_id"`
	Kind       Kind        `json:"kind"`
	Amount     int64       `json:"amount"` // rupiah
	Note       null.String `json:"note"`
	Status     Status      `json:"status"`
	VerifiedBy null.String `json:"verified_by"` // bendahara member id
	CreatedAt  time.Time   `json:"created_at"`  // UTC
	UpdatedAt  time.Time   `json:"updated_at"`  // UTC
}

// NewDonation is a jamaah's submission; it always starts pending.
type NewDonation struct {
	Kind   Kind   `json:"kind" validate:"required,donationkind"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Note   string `json:"note"`
}

func (nd *NewDonation) Validate() error {
	nd.Note = core.CleanString(nd.Note)
	return core.Validate.Struct(nd)
}

type QueryFilter struct {
	MemberID string   `query:"member_id"`
	Statuses []Status `query:"status"`
}

// Totals feeds the bendahara dashboard.
type Totals struct {
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
	Rejected int64 `json:"rejected"`
}

type Repository interface {
	CreateDonation(ctx context.Context, d Donation) (Donation, error)
	GetDonationByID(ctx context.Context, id string) (Donation, error)
	FilterDonations(ctx context.Context, filter QueryFilter) ([]Donation, error)
	SetDonationStatus(ctx context.Context, id string, status Status, verifierID string) (Donation, error)
	SumDonations(ctx context.Context) (Totals, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return Service{repo: repo}
}

func (svc Service) Submit(ctx context.Context, memberID string, nd NewDonation) (Donation, error) {
	now := time.Now().UTC()
	d := Donation{
		MemberID:  memberID,
		Kind:      nd.Kind,
		Amount:    nd.Amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nd.Note != "" {
		d.Note.SetValid(nd.Note)
	}
	return svc.repo.CreateDonation(ctx, d)
}

func (svc Service) GetByID(ctx context.Context, id string) (Donation, error) {
	return svc.repo.GetDonationByID(ctx, id)
}

func (svc Service) Filter(ctx context.Context, filter QueryFilter) ([]Donation, error) {
	return svc.repo.FilterDonations(ctx, filter)
}

// Verify marks a pending donation verified; the status transition feeds the
// donor's notification via the live channel.
func (svc Service) Verify(ctx context.Context, id, verifierID string) (Donation, error) {
	return svc.repo.SetDonationStatus(ctx, id, StatusVerified, verifierID)
}

func (svc Service) Reject(ctx context.Context, id, verifierID string) (Donation, error) {
	return svc.repo.SetDonationStatus(ctx, id, StatusRejected, verifierID)
}

func (svc Service) Totals(ctx context.Context) (Totals, error) {
	return svc.repo.SumDonations(ctx)
}
