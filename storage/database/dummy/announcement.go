package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/masjidku/backend/core/announcement"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/notify"
)

type announcementRepository struct {
	db *DB
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	repo.db.announcement.Lock()
	a.ID = uuid.NewString()
	repo.db.announcement.table[a.ID] = &a
	repo.db.announcement.Unlock()

	// publish outside the lock; a subscriber may read the table synchronously
	repo.db.publish(live.Change{Table: notify.TableAnnouncements, Op: live.OpInsert, New: announcementRow(a)})
	return a, nil
}

func (repo *announcementRepository) GetAnnouncementByID(_ context.Context, id string) (announcement.Announcement, error) {
	repo.db.announcement.RLock()
	defer repo.db.announcement.RUnlock()

	if a, ok := repo.db.announcement.table[id]; ok {
		return *a, nil
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, activeOnly bool) ([]announcement.Announcement, error) {
	repo.db.announcement.RLock()
	defer repo.db.announcement.RUnlock()

	announcements := make([]announcement.Announcement, 0, len(repo.db.announcement.table))
	for _, a := range repo.db.announcement.table {
		if activeOnly && !a.IsActive {
			continue
		}
		announcements = append(announcements, *a)
	}
	sort.Slice(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt.After(announcements[j].CreatedAt)
	})
	return announcements, nil
}

func (repo *announcementRepository) SetAnnouncementActive(_ context.Context, id string, active bool) (announcement.Announcement, error) {
	repo.db.announcement.Lock()
	a, ok := repo.db.announcement.table[id]
	if !ok {
		repo.db.announcement.Unlock()
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	old := announcementRow(*a)
	a.IsActive = active
	updated := *a
	repo.db.announcement.Unlock()

	repo.db.publish(live.Change{Table: notify.TableAnnouncements, Op: live.OpUpdate, Old: old, New: announcementRow(updated)})
	return updated, nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string) error {
	repo.db.announcement.Lock()
	a, ok := repo.db.announcement.table[id]
	if !ok {
		repo.db.announcement.Unlock()
		return announcement.ErrNotFound
	}
	deleted := *a
	delete(repo.db.announcement.table, id)
	repo.db.announcement.Unlock()

	repo.db.publish(live.Change{Table: notify.TableAnnouncements, Op: live.OpDelete, Old: announcementRow(deleted)})
	return nil
}

func announcementRow(a announcement.Announcement) live.Row {
	return live.Row{
		"id":        a.ID,
		"title":     a.Title,
		"is_active": a.IsActive,
		"author_id": a.AuthorID,
	}
}
