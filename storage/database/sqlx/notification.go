package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/masjidku/backend/core/notify"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notify.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID          string      `db:"id"`
	PrincipalID null.String `db:"principal_id"`
	Kind        string      `db:"kind"`
	Message     string      `db:"message"`
	ReadAt      null.Time   `db:"read_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r notificationRow) toNotification() notify.Notification {
	return notify.Notification{
		ID:          r.ID,
		PrincipalID: r.PrincipalID.String,
		Kind:        r.Kind,
		Message:     r.Message,
		ReadAt:      r.ReadAt,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notify.Notification) (notify.Notification, error) {
	var row notificationRow
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (principal_id, kind, message, created_at)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4)
		RETURNING *`,
		n.PrincipalID, n.Kind, n.Message, n.CreatedAt,
	).StructScan(&row)
	if err != nil {
		return notify.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, principalID string) ([]notify.Notification, error) {
	var rows []notificationRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications
		WHERE principal_id = $1 OR principal_id IS NULL
		ORDER BY created_at DESC`,
		principalID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifications := make([]notify.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.toNotification())
	}
	return notifications, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id, principalID string) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE id = $1 AND (principal_id = $2 OR principal_id IS NULL)`,
		id, principalID,
	)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notify.ErrNotFound
	}
	return nil
}
