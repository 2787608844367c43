package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core/announcement"
)

type announcementRepository struct {
	db *sqlx.DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{db: db}
}

type announcementRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	IsActive  bool      `db:"is_active"`
	AuthorID  string    `db:"author_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r announcementRow) toAnnouncement() announcement.Announcement {
	return announcement.Announcement{
		ID:        r.ID,
		Title:     r.Title,
		Body:      r.Body,
		IsActive:  r.IsActive,
		AuthorID:  r.AuthorID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	var row announcementRow
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO announcements (title, body, is_active, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING *`,
		a.Title, a.Body, a.IsActive, a.AuthorID, a.CreatedAt,
	).StructScan(&row)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return row.toAnnouncement(), nil
}

func (repo *announcementRepository) GetAnnouncementByID(ctx context.Context, id string) (announcement.Announcement, error) {
	var row announcementRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM announcements WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "getting announcement")
	}
	return row.toAnnouncement(), nil
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, activeOnly bool) ([]announcement.Announcement, error) {
	q := `SELECT * FROM announcements`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY created_at DESC`

	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	announcements := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		announcements = append(announcements, row.toAnnouncement())
	}
	return announcements, nil
}

func (repo *announcementRepository) SetAnnouncementActive(ctx context.Context, id string, active bool) (announcement.Announcement, error) {
	var row announcementRow
	err := repo.db.QueryRowxContext(ctx, `
		UPDATE announcements SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING *`,
		id, active,
	).StructScan(&row)
	if err == sql.ErrNoRows {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "setting announcement active")
	}
	return row.toAnnouncement(), nil
}

func (repo *announcementRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return announcement.ErrNotFound
	}
	return nil
}
