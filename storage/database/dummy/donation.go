package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/notify"
)

type donationRepository struct {
	db *DB
}

var _ donation.Repository = (*donationRepository)(nil)

func NewDonationRepository(db *DB) *donationRepository {
	return &donationRepository{db: db}
}

func (repo *donationRepository) CreateDonation(_ context.Context, d donation.Donation) (donation.Donation, error) {
	repo.db.donation.Lock()
	d.ID = uuid.NewString()
	repo.db.donation.table[d.ID] = &d
	repo.db.donation.Unlock()

	// publish outside the lock; a subscriber may read the table synchronously
	repo.db.publish(live.Change{Table: notify.TableDonations, Op: live.OpInsert, New: donationRow(d)})
	return d, nil
}

func (repo *donationRepository) GetDonationByID(_ context.Context, id string) (donation.Donation, error) {
	repo.db.donation.RLock()
	defer repo.db.donation.RUnlock()

	if d, ok := repo.db.donation.table[id]; ok {
		return *d, nil
	}
	return donation.Donation{}, donation.ErrNotFound
}

func (repo *donationRepository) FilterDonations(_ context.Context, filter donation.QueryFilter) ([]donation.Donation, error) {
	repo.db.donation.RLock()
	defer repo.db.donation.RUnlock()

	donations := make([]donation.Donation, 0, len(repo.db.donation.table))
	for _, d := range repo.db.donation.table {
		if filter.MemberID != "" && d.MemberID != filter.MemberID {
			continue
		}
		if len(filter.Statuses) > 0 {
			var ok bool
			for _, status := range filter.Statuses {
				if d.Status == status {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		donations = append(donations, *d)
	}
	sort.Slice(donations, func(i, j int) bool { return donations[i].CreatedAt.After(donations[j].CreatedAt) })
	return donations, nil
}

func (repo *donationRepository) SetDonationStatus(_ context.Context, id string, status donation.Status, verifierID string) (donation.Donation, error) {
	repo.db.donation.Lock()
	d, ok := repo.db.donation.table[id]
	if !ok {
		repo.db.donation.Unlock()
		return donation.Donation{}, donation.ErrNotFound
	}
	old := donationRow(*d)
	d.Status = status
	if verifierID != "" {
		d.VerifiedBy.SetValid(verifierID)
	}
	updated := *d
	repo.db.donation.Unlock()

	repo.db.publish(live.Change{Table: notify.TableDonations, Op: live.OpUpdate, Old: old, New: donationRow(updated)})
	return updated, nil
}

func (repo *donationRepository) SumDonations(_ context.Context) (donation.Totals, error) {
	repo.db.donation.RLock()
	defer repo.db.donation.RUnlock()

	var totals donation.Totals
	for _, d := range repo.db.donation.table {
		switch d.Status {
		case donation.StatusPending:
			totals.Pending += d.Amount
		case donation.StatusVerified:
			totals.Verified += d.Amount
		case donation.StatusRejected:
			totals.Rejected += d.Amount
		}
	}
	return totals, nil
}

func donationRow(d donation.Donation) live.Row {
	return live.Row{
		"id":        d.ID,
		"member_id": d.MemberID,
		"kind":      string(d.Kind),
		"status":    string(d.Status),
	}
}
