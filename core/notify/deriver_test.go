package notify

import (
	"testing"

	"github.com/masjidku/backend/core/live"
)

func Test_Derive(t *testing.T) {
	tests := []struct {
		name     string
		change   live.Change
		wantOK   bool
		wantKind string
		wantFor  string // principal id; empty means broadcast
	}{
		{
			name: "profile approval notifies the member",
			change: live.Change{
				Table: TableProfiles, Op: live.OpUpdate,
				Old: live.Row{"member_id": "m1", "status": "pending"},
				New: live.Row{"member_id": "m1", "status": "approved"},
			},
			wantOK: true, wantKind: KindAccountApproved, wantFor: "m1",
		},
		{
			name: "no-op profile write yields nothing",
			change: live.Change{
				Table: TableProfiles, Op: live.OpUpdate,
				Old: live.Row{"member_id": "m1", "status": "approved"},
				New: live.Row{"member_id": "m1", "status": "approved"},
			},
		},
		{
			name: "untracked profile field yields nothing",
			change: live.Change{
				Table: TableProfiles, Op: live.OpUpdate,
				Old: live.Row{"member_id": "m1", "status": "approved", "phone": ""},
				New: live.Row{"member_id": "m1", "status": "approved", "phone": "0812"},
			},
		},
		{
			name: "profile rejection is not pushed",
			change: live.Change{
				Table: TableProfiles, Op: live.OpUpdate,
				Old: live.Row{"member_id": "m1", "status": "pending"},
				New: live.Row{"member_id": "m1", "status": "rejected"},
			},
		},
		{
			name: "profile insert yields nothing",
			change: live.Change{
				Table: TableProfiles, Op: live.OpInsert,
				New: live.Row{"member_id": "m1", "status": "pending"},
			},
		},
		{
			name: "donation verification notifies the donor",
			change: live.Change{
				Table: TableDonations, Op: live.OpUpdate,
				Old: live.Row{"member_id": "m2", "kind": "zakat", "status": "pending"},
				New: live.Row{"member_id": "m2", "kind": "zakat", "status": "verified"},
			},
			wantOK: true, wantKind: KindDonationVerified, wantFor: "m2",
		},
		{
			name: "donation rejection notifies the donor",
			change: live.Change{
				Table: TableDonations, Op: live.OpUpdate,
				Old: live.Row{"member_id": "m2", "kind": "infaq", "status": "pending"},
				New: live.Row{"member_id": "m2", "kind": "infaq", "status": "rejected"},
			},
			wantOK: true, wantKind: KindDonationRejected, wantFor: "m2",
		},
		{
			name: "active announcement insert is broadcast",
			change: live.Change{
				Table: TableAnnouncements, Op: live.OpInsert,
				New: live.Row{"title": "Kajian Subuh", "is_active": true},
			},
			wantOK: true, wantKind: KindAnnouncementPosted,
		},
		{
			name: "inactive announcement insert yields nothing",
			change: live.Change{
				Table: TableAnnouncements, Op: live.OpInsert,
				New: live.Row{"title": "Draft", "is_active": false},
			},
		},
		{
			name: "untracked table yields nothing",
			change: live.Change{
				Table: "members", Op: live.OpUpdate,
				Old: live.Row{"role": ""},
				New: live.Row{"role": "admin"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := Derive(tt.change)
			if ok != tt.wantOK {
				t.Fatalf("Derive() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if n.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", n.Kind, tt.wantKind)
			}
			if n.PrincipalID != tt.wantFor {
				t.Errorf("PrincipalID = %q, want %q", n.PrincipalID, tt.wantFor)
			}
			if tt.wantFor == "" && !n.Broadcast() {
				t.Error("announcement notification should be a broadcast")
			}
			if n.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}
