package announcement

import (
	"context"
	"errors"
	"time"

	"github.com/masjidku/backend/core"
)

var ErrNotFound = errors.New("announcement not found")

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewAnnouncement struct {
	Title    string `json:"title" validate:"required"`
	Body     string `json:"body" validate:"required"`
	IsActive *bool  `json:"is_active"`
}

func (na *NewAnnouncement) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	return core.Validate.Struct(na)
}

type Repository interface {
	CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
	GetAnnouncementByID(ctx context.Context, id string) (Announcement, error)
	QueryAnnouncements(ctx context.Context, activeOnly bool) ([]Announcement, error)
	SetAnnouncementActive(ctx context.Context, id string, active bool) (Announcement, error)
	DeleteAnnouncement(ctx context.Context, id string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return Service{repo: repo}
}

// Publish creates the announcement; an active insert is broadcast to every
// connected member through the live channel.
func (svc Service) Publish(ctx context.Context, authorID string, na NewAnnouncement) (Announcement, error) {
	now := time.Now().UTC()
	active := true
	if na.IsActive != nil {
		active = *na.IsActive
	}
	a := Announcement{
		Title:     na.Title,
		Body:      na.Body,
		IsActive:  active,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateAnnouncement(ctx, a)
}

func (svc Service) GetByID(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncementByID(ctx, id)
}

func (svc Service) QueryActive(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, true)
}

func (svc Service) QueryAll(ctx context.Context) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, false)
}

func (svc Service) SetActive(ctx context.Context, id string, active bool) (Announcement, error) {
	return svc.repo.SetAnnouncementActive(ctx, id, active)
}

func (svc Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAnnouncement(ctx, id)
}
