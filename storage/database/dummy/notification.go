package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/masjidku/backend/core/notify"
)

type notificationRepository struct {
	db *DB
}

var _ notify.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notify.Notification) (notify.Notification, error) {
	repo.db.notification.Lock()
	defer repo.db.notification.Unlock()

	n.ID = uuid.NewString()
	repo.db.notification.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, principalID string) ([]notify.Notification, error) {
	repo.db.notification.RLock()
	defer repo.db.notification.RUnlock()

	var notifications []notify.Notification
	for _, n := range repo.db.notification.table {
		if n.PrincipalID != "" && n.PrincipalID != principalID {
			continue
		}
		notifications = append(notifications, *n)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (repo *notificationRepository) MarkNotificationRead(_ context.Context, id, principalID string) error {
	repo.db.notification.Lock()
	defer repo.db.notification.Unlock()

	n, ok := repo.db.notification.table[id]
	if !ok || (n.PrincipalID != "" && n.PrincipalID != principalID) {
		return notify.ErrNotFound
	}
	if !n.ReadAt.Valid {
		n.ReadAt.SetValid(time.Now().UTC())
	}
	return nil
}
