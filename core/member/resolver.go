package member

import (
	"context"
	"sync"

	"github.com/masjidku/backend/core"
)

// Identity is the resolved entitlement view of a principal. A nil Role means
// "unauthorized: no role"; a nil Profile degrades to the pending default.
type Identity struct {
	Role    *Role
	Profile *Profile
}

// Status returns the effective approval status: pending when no profile row
// could be resolved.
func (id Identity) Status() Status {
	if id.Profile == nil {
		return StatusPending
	}
	return id.Profile.Status
}

// Resolver maps a principal id to exactly one Role and one Profile.
type Resolver struct {
	repo Repository
	log  core.Logger
}

func NewResolver(repo Repository, log core.Logger) *Resolver {
	return &Resolver{repo: repo, log: log}
}

// Resolve issues the role and profile lookups concurrently; a failed lookup
// resolves to a nil field, never an error. The caller decides policy:
// no role means unauthorized, no profile means the pending default.
// No in-band retries; callers re-invoke on the next navigation.
func (r *Resolver) Resolve(ctx context.Context, principalID string) Identity {
	var (
		id Identity
		wg sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		role, err := r.repo.GetRole(ctx, principalID)
		switch err {
		case nil:
			id.Role = &role
		case ErrNoRole, ErrNotFound:
			// an authenticated principal without a role is an orphaned
			// account; flag it for the operator
			if r.log != nil {
				r.log.Warn("principal has no role row", map[string]interface{}{"principal": principalID})
			}
		default:
			if r.log != nil {
				r.log.Warn("role lookup failed", err)
			}
		}
	}()

	go func() {
		defer wg.Done()
		profile, err := r.repo.GetProfile(ctx, principalID)
		if err == nil {
			id.Profile = &profile
		} else if err != ErrProfileNotFound && err != ErrNotFound && r.log != nil {
			r.log.Warn("profile lookup failed", err)
		}
	}()

	wg.Wait()
	return id
}

// ResolveProfile refetches only the profile for the current principal; used
// after a self profile edit or an approval notification, without paying for
// a full resolution round-trip.
func (r *Resolver) ResolveProfile(ctx context.Context, principalID string) *Profile {
	profile, err := r.repo.GetProfile(ctx, principalID)
	if err != nil {
		return nil
	}
	return &profile
}
