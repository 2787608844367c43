package notify

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var ErrNotFound = errors.New("notification not found")

// Kinds, one per tracked transition.
const (
	KindAccountApproved    = "account_approved"
	KindDonationVerified   = "donation_verified"
	KindDonationRejected   = "donation_rejected"
	KindAnnouncementPosted = "announcement_posted"
)

type Notification struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id,omitempty"` // empty: broadcast
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	ReadAt      null.Time `json:"read_at"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (n *Notification) Broadcast() bool { return n.PrincipalID == "" }

type Repository interface {
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	QueryNotifications(ctx context.Context, principalID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, principalID string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return Service{repo: repo}
}

func (svc Service) Create(ctx context.Context, n Notification) (Notification, error) {
	n.CreatedAt = time.Now().UTC()
	return svc.repo.CreateNotification(ctx, n)
}

// QueryFor returns the member's own notifications plus broadcasts.
func (svc Service) QueryFor(ctx context.Context, principalID string) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, principalID)
}

func (svc Service) MarkRead(ctx context.Context, id, principalID string) error {
	return svc.repo.MarkNotificationRead(ctx, id, principalID)
}
