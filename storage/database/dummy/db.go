// Package dummydb is the in-memory storage backend used by tests and local
// hacking. Writes publish row changes on the live bus the same way the
// Postgres triggers do, so live-invalidation paths work without a database.
package dummydb

import (
	"sync"

	"github.com/masjidku/backend/core/announcement"
	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
)

type (
	DB struct {
		bus *live.Bus

		member       *memberTable
		donation     *donationTable
		announcement *announcementTable
		notification *notificationTable
	}

	memberTable struct {
		sync.RWMutex
		members  map[string]*member.Member
		profiles map[string]*member.Profile
	}

	donationTable struct {
		sync.RWMutex
		table map[string]*donation.Donation
	}

	announcementTable struct {
		sync.RWMutex
		table map[string]*announcement.Announcement
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notify.Notification
	}
)

func Open(bus *live.Bus) (*DB, error) {
	if bus == nil {
		bus = live.NewBus()
	}
	db := &DB{
		bus: bus,
		member: &memberTable{
			members:  make(map[string]*member.Member),
			profiles: make(map[string]*member.Profile),
		},
		donation:     &donationTable{table: make(map[string]*donation.Donation)},
		announcement: &announcementTable{table: make(map[string]*announcement.Announcement)},
		notification: &notificationTable{table: make(map[string]*notify.Notification)},
	}
	return db, nil
}

func (db *DB) Bus() *live.Bus { return db.bus }

func (db *DB) publish(ch live.Change) {
	db.bus.Publish(ch)
}
