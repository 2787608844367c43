// Package guard enforces a declared route policy against the current
// authorization state. Evaluate is a pure function re-run on every change to
// either input; no decision is ever cached across evaluations, so a role or
// approval change made elsewhere takes effect on the next evaluation.
package guard

import (
	"github.com/masjidku/backend/core/authstate"
	"github.com/masjidku/backend/core/member"
)

const LoginPath = "/login"

var dashboardPaths = map[member.Role]string{
	member.RoleAdmin:     "/admin/dashboard",
	member.RoleBendahara: "/bendahara/dashboard",
	member.RoleJamaah:    "/jamaah/dashboard",
}

// DashboardPath returns the default dashboard for a role; every
// authenticated-but-misdirected member gets a working destination.
func DashboardPath(role member.Role) string {
	if p, ok := dashboardPaths[role]; ok {
		return p
	}
	return LoginPath
}

// Policy is declared per protected subtree; it is never stored.
type Policy struct {
	AllowedRoles    []member.Role
	RequireApproval bool
}

func (p Policy) allows(role member.Role) bool {
	for _, r := range p.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Action int

const (
	// Wait: resolution in flight, render a neutral indicator, no navigation.
	Wait Action = iota
	// RedirectLogin: no principal or no role.
	RedirectLogin
	// RedirectHome: authenticated with a role outside the policy; Target is
	// that role's own dashboard, never the attempted page or an error page.
	RedirectHome
	// SignOutRedirectLogin: jamaah behind the approval gate; force sign-out
	// before redirecting.
	SignOutRedirectLogin
	// Allow: render the protected subtree.
	Allow
)

type Decision struct {
	Action Action
	Target string // redirect destination; replace navigation, never push
}

// Evaluate runs the decision table top-to-bottom, first match wins.
func Evaluate(st authstate.State, p Policy) Decision {
	if st.Loading {
		return Decision{Action: Wait}
	}
	if st.Principal == nil {
		return Decision{Action: RedirectLogin, Target: LoginPath}
	}
	// absence of any role is always a sign-in redirect, never a dashboard one
	if st.Role == nil {
		return Decision{Action: RedirectLogin, Target: LoginPath}
	}
	if !p.allows(*st.Role) {
		return Decision{Action: RedirectHome, Target: DashboardPath(*st.Role)}
	}
	// approval is re-checked on every guarded evaluation, not only at
	// sign-in: it can change while a session is live
	if p.RequireApproval && *st.Role == member.RoleJamaah && !approved(st.Profile) {
		return Decision{Action: SignOutRedirectLogin, Target: LoginPath}
	}
	return Decision{Action: Allow}
}

func approved(p *member.Profile) bool {
	return p != nil && p.Status == member.StatusApproved
}
