package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrNoSession            = errors.New("no active session")
)

// EventKind identifies a session transition pushed by a Provider.
type EventKind string

const (
	SignedIn       EventKind = "SIGNED_IN"
	SignedOut      EventKind = "SIGNED_OUT"
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
)

type (
	// Principal is the authenticated identity issued by the auth provider.
	Principal struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	// Session is a time-bounded credential tied to exactly one Principal.
	// At most one live Session exists per client context.
	Session struct {
		Token     string    `json:"token"`
		Principal Principal `json:"principal"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	Event struct {
		Kind    EventKind
		Session *Session // nil on SignedOut
	}

	// Unsubscribe releases a session-change subscription. Safe to call twice.
	Unsubscribe func()

	// Provider is the auth collaborator contract. Implementations must never
	// invoke a callback registered via OnSessionChange reentrantly from
	// within a SignIn/SignOut call chain of that same callback; consumers in
	// turn must not call back into the Provider from inside the callback.
	Provider interface {
		SignIn(ctx context.Context, email, password string) (*Session, error)
		SignOut(ctx context.Context) error
		// GetSession returns the current session, or nil when there is none.
		// One-shot; used to bootstrap state on cold start.
		GetSession(ctx context.Context) (*Session, error)
		OnSessionChange(fn func(Event)) Unsubscribe
	}
)

func (s *Session) Expired() bool {
	return s != nil && !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}
