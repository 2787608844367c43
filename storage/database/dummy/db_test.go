package dummydb

import (
	"context"
	"testing"
	"time"

	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
)

// bus delivery runs on the writer's goroutine; a subscriber that reads the
// written table back synchronously must not deadlock against the write lock
func Test_subscriberReadsTableSynchronously(t *testing.T) {
	db, err := Open(nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	ctx := context.Background()
	memberRepo := NewMemberRepository(db)
	donationRepo := NewDonationRepository(db)

	var profileReads []member.Profile
	unsubProfiles, err := db.Bus().Subscribe(ctx, notify.TableProfiles, nil, func(ch live.Change) {
		if p, rErr := memberRepo.GetProfile(ctx, ch.New.Str("member_id")); rErr == nil {
			profileReads = append(profileReads, p)
		}
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer unsubProfiles()

	var donationReads []donation.Donation
	unsubDonations, err := db.Bus().Subscribe(ctx, notify.TableDonations, nil, func(ch live.Change) {
		if d, rErr := donationRepo.GetDonationByID(ctx, ch.New.Str("id")); rErr == nil {
			donationReads = append(donationReads, d)
		}
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer unsubDonations()

	now := time.Now().UTC()
	m, err := memberRepo.CreateMember(ctx,
		member.Member{Email: "jamaah@test.id", Role: member.RoleJamaah, IsActive: true, CreatedAt: now, UpdatedAt: now},
		member.Profile{FullName: "Jamaah Baru", Status: member.StatusPending, CreatedAt: now, UpdatedAt: now},
	)
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	if _, err = memberRepo.SetProfileStatus(ctx, m.ID, member.StatusApproved); err != nil {
		t.Fatalf("SetProfileStatus() failed: %v", err)
	}
	d, err := donationRepo.CreateDonation(ctx, donation.Donation{
		MemberID: m.ID, Amount: 100000, Kind: donation.KindInfaq, Status: donation.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateDonation() failed: %v", err)
	}
	if _, err = donationRepo.SetDonationStatus(ctx, d.ID, donation.StatusVerified, ""); err != nil {
		t.Fatalf("SetDonationStatus() failed: %v", err)
	}

	if len(profileReads) != 2 {
		t.Fatalf("profile reads = %d, want 2", len(profileReads))
	}
	if got := profileReads[1].Status; got != member.StatusApproved {
		t.Errorf("read-back status = %v, want %v", got, member.StatusApproved)
	}
	if len(donationReads) != 2 {
		t.Fatalf("donation reads = %d, want 2", len(donationReads))
	}
	if got := donationReads[1].Status; got != donation.StatusVerified {
		t.Errorf("read-back status = %v, want %v", got, donation.StatusVerified)
	}
}
