package notify

import (
	"fmt"

	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
)

// Tables whose row transitions the deriver tracks.
const (
	TableProfiles      = "profiles"
	TableDonations     = "donations"
	TableAnnouncements = "announcements"
)

// Derive turns a row change into a user-facing notification iff a tracked
// field actually changed value:
//
//	profiles.status        -> approved
//	donations.status       -> verified | rejected
//	announcements (insert) -> is_active = true
//
// No-op writes (same value rewritten) and untracked fields yield nothing.
func Derive(ch live.Change) (Notification, bool) {
	switch ch.Table {
	case TableProfiles:
		return deriveProfile(ch)
	case TableDonations:
		return deriveDonation(ch)
	case TableAnnouncements:
		return deriveAnnouncement(ch)
	}
	return Notification{}, false
}

func deriveProfile(ch live.Change) (Notification, bool) {
	if ch.Op != live.OpUpdate {
		return Notification{}, false
	}
	was, now := ch.Old.Str("status"), ch.New.Str("status")
	if was == now || now != string(member.StatusApproved) {
		return Notification{}, false
	}
	return Notification{
		PrincipalID: ch.New.Str("member_id"),
		Kind:        KindAccountApproved,
		Message:     "Pendaftaran Anda telah disetujui. Selamat datang!",
	}, true
}

func deriveDonation(ch live.Change) (Notification, bool) {
	if ch.Op != live.OpUpdate {
		return Notification{}, false
	}
	was, now := ch.Old.Str("status"), ch.New.Str("status")
	if was == now {
		return Notification{}, false
	}
	switch now {
	case "verified":
		return Notification{
			PrincipalID: ch.New.Str("member_id"),
			Kind:        KindDonationVerified,
			Message:     fmt.Sprintf("Donasi %s Anda telah diverifikasi.", ch.New.Str("kind")),
		}, true
	case "rejected":
		return Notification{
			PrincipalID: ch.New.Str("member_id"),
			Kind:        KindDonationRejected,
			Message:     fmt.Sprintf("Donasi %s Anda ditolak. Silakan hubungi bendahara.", ch.New.Str("kind")),
		}, true
	}
	return Notification{}, false
}

func deriveAnnouncement(ch live.Change) (Notification, bool) {
	if ch.Op != live.OpInsert || !ch.New.Bool("is_active") {
		return Notification{}, false
	}
	return Notification{
		// broadcast
		Kind:    KindAnnouncementPosted,
		Message: "Pengumuman baru: " + ch.New.Str("title"),
	}, true
}
