package guard

import (
	"testing"

	"github.com/masjidku/backend/core/auth"
	"github.com/masjidku/backend/core/authstate"
	"github.com/masjidku/backend/core/member"
)

func statePtr(role member.Role) *member.Role { return &role }

func profileWith(status member.Status) *member.Profile {
	return &member.Profile{MemberID: "m1", FullName: "Test", Status: status}
}

func authorized(role member.Role, status member.Status) authstate.State {
	return authstate.State{
		Phase:     authstate.Authorized,
		Principal: &auth.Principal{ID: "m1", Email: "m1@test.id"},
		Role:      statePtr(role),
		Profile:   profileWith(status),
	}
}

func Test_Evaluate(t *testing.T) {
	jamaahPolicy := Policy{AllowedRoles: []member.Role{member.RoleJamaah}, RequireApproval: true}
	adminPolicy := Policy{AllowedRoles: []member.Role{member.RoleAdmin}}

	tests := []struct {
		name       string
		state      authstate.State
		policy     Policy
		wantAction Action
		wantTarget string
	}{
		{
			name:       "loading waits, never redirects",
			state:      authstate.State{Phase: authstate.Resolving, Principal: &auth.Principal{ID: "m1"}, Loading: true},
			policy:     jamaahPolicy,
			wantAction: Wait,
		},
		{
			name:       "no principal redirects to login",
			state:      authstate.State{Phase: authstate.Unauthenticated},
			policy:     jamaahPolicy,
			wantAction: RedirectLogin,
			wantTarget: LoginPath,
		},
		{
			name: "principal without role redirects to login, not a dashboard",
			state: authstate.State{
				Phase:     authstate.Unauthorized,
				Principal: &auth.Principal{ID: "m1"},
				Profile:   profileWith(member.StatusApproved),
			},
			policy:     jamaahPolicy,
			wantAction: RedirectLogin,
			wantTarget: LoginPath,
		},
		{
			name:       "role outside policy redirects to own dashboard",
			state:      authorized(member.RoleBendahara, member.StatusApproved),
			policy:     adminPolicy,
			wantAction: RedirectHome,
			wantTarget: "/bendahara/dashboard",
		},
		{
			name:       "pending jamaah behind approval gate is signed out",
			state:      authorized(member.RoleJamaah, member.StatusPending),
			policy:     jamaahPolicy,
			wantAction: SignOutRedirectLogin,
			wantTarget: LoginPath,
		},
		{
			name:       "rejected jamaah behind approval gate is signed out",
			state:      authorized(member.RoleJamaah, member.StatusRejected),
			policy:     jamaahPolicy,
			wantAction: SignOutRedirectLogin,
			wantTarget: LoginPath,
		},
		{
			name:       "approved jamaah is allowed",
			state:      authorized(member.RoleJamaah, member.StatusApproved),
			policy:     jamaahPolicy,
			wantAction: Allow,
		},
		{
			name:       "admin is never gated on approval",
			state:      authorized(member.RoleAdmin, member.StatusPending),
			policy:     Policy{AllowedRoles: member.AllRoles, RequireApproval: true},
			wantAction: Allow,
		},
		{
			name:       "pending jamaah allowed when policy does not gate",
			state:      authorized(member.RoleJamaah, member.StatusPending),
			policy:     Policy{AllowedRoles: []member.Role{member.RoleJamaah}},
			wantAction: Allow,
		},
		{
			name: "jamaah without profile row defaults to gated",
			state: authstate.State{
				Phase:     authstate.Authorized,
				Principal: &auth.Principal{ID: "m1"},
				Role:      statePtr(member.RoleJamaah),
			},
			policy:     jamaahPolicy,
			wantAction: SignOutRedirectLogin,
			wantTarget: LoginPath,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.state, tt.policy)
			if d.Action != tt.wantAction {
				t.Errorf("Evaluate() action = %v, want %v", d.Action, tt.wantAction)
			}
			if d.Target != tt.wantTarget {
				t.Errorf("Evaluate() target = %q, want %q", d.Target, tt.wantTarget)
			}
		})
	}
}

func Test_DashboardPath(t *testing.T) {
	tests := []struct {
		role member.Role
		want string
	}{
		{member.RoleAdmin, "/admin/dashboard"},
		{member.RoleBendahara, "/bendahara/dashboard"},
		{member.RoleJamaah, "/jamaah/dashboard"},
		{member.Role("ketua"), LoginPath},
	}
	for _, tt := range tests {
		if got := DashboardPath(tt.role); got != tt.want {
			t.Errorf("DashboardPath(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

// A member signed in on two policies at once: the same state feeds every
// evaluation, so an admin visiting the jamaah area bounces to their own
// dashboard while the admin area still renders.
func Test_Evaluate_roleMismatchKeepsOwnDashboard(t *testing.T) {
	st := authorized(member.RoleAdmin, member.StatusApproved)

	d := Evaluate(st, Policy{AllowedRoles: []member.Role{member.RoleJamaah}, RequireApproval: true})
	if d.Action != RedirectHome || d.Target != "/admin/dashboard" {
		t.Errorf("jamaah area: got (%v, %q), want (RedirectHome, /admin/dashboard)", d.Action, d.Target)
	}

	d = Evaluate(st, Policy{AllowedRoles: []member.Role{member.RoleAdmin}})
	if d.Action != Allow {
		t.Errorf("admin area: got %v, want Allow", d.Action)
	}
}
