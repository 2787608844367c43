// Package authsvc implements the auth collaborator contract on top of the
// member store: bcrypt credentials, HS256 session tokens, and a push stream
// of session transitions.
package authsvc

import (
	"context"
	"sync"
	"time"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/auth"
	"github.com/masjidku/backend/core/member"
)

// Provider tracks at most one live session per instance (one client
// context). Session change callbacks are delivered after the internal state
// has settled; callbacks must not call back into the Provider synchronously.
type Provider struct {
	svc  member.Service
	conf *core.Config
	log  core.Logger

	mu     sync.RWMutex
	cur    *auth.Session
	subs   map[int]func(auth.Event)
	nextID int
}

var _ auth.Provider = (*Provider)(nil)

func NewProvider(svc member.Service, conf *core.Config, log core.Logger) *Provider {
	return &Provider{
		svc:  svc,
		conf: conf,
		log:  log,
		subs: make(map[int]func(auth.Event)),
	}
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	m, err := p.svc.GetByEmail(ctx, email)
	if err != nil {
		if err == member.ErrNotFound {
			return nil, auth.ErrAuthenticationFailed
		}
		return nil, err
	}
	if err = m.CheckPassword(password); err != nil {
		return nil, auth.ErrAuthenticationFailed
	}
	if !m.IsActive {
		return nil, auth.ErrAccountDeactivated
	}
	if m, err = p.svc.SetLastLogin(ctx, m); err != nil && p.log != nil {
		p.log.Warn("setting lastLogin", err)
	}

	claims := GetMemberClaims(p.conf, m)
	token, err := GenerateToken(p.conf, claims)
	if err != nil {
		return nil, err
	}
	sess := &auth.Session{
		Token:     token,
		Principal: auth.Principal{ID: m.ID, Email: m.Email},
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}

	p.mu.Lock()
	p.cur = sess
	p.mu.Unlock()
	p.emit(auth.Event{Kind: auth.SignedIn, Session: sess})
	return sess, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.cur != nil
	p.cur = nil
	p.mu.Unlock()
	if had {
		p.emit(auth.Event{Kind: auth.SignedOut})
	}
	return nil
}

// GetSession returns the current session, expiring it lazily.
func (p *Provider) GetSession(ctx context.Context) (*auth.Session, error) {
	p.mu.RLock()
	sess := p.cur
	p.mu.RUnlock()
	if sess == nil {
		return nil, nil
	}
	if sess.Expired() {
		p.mu.Lock()
		if p.cur == sess {
			p.cur = nil
		}
		p.mu.Unlock()
		p.emit(auth.Event{Kind: auth.SignedOut})
		return nil, nil
	}
	return sess, nil
}

// Refresh mints a fresh token for the current session within the refresh
// window and announces it as TOKEN_REFRESHED.
func (p *Provider) Refresh(ctx context.Context) (*auth.Session, error) {
	p.mu.RLock()
	sess := p.cur
	p.mu.RUnlock()
	if sess == nil {
		return nil, auth.ErrNoSession
	}

	claims, err := ParseToken(p.conf, sess.Token)
	if err != nil {
		return nil, err
	}
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(p.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return nil, auth.ErrNoSession
	}

	m, err := p.svc.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, auth.ErrAccountDeactivated
	}

	newClaims := GetMemberClaims(p.conf, m, claims.OrigIssuedAt)
	token, err := GenerateToken(p.conf, newClaims)
	if err != nil {
		return nil, err
	}
	fresh := &auth.Session{
		Token:     token,
		Principal: sess.Principal,
		ExpiresAt: time.Unix(newClaims.ExpiresAt, 0),
	}

	p.mu.Lock()
	p.cur = fresh
	p.mu.Unlock()
	p.emit(auth.Event{Kind: auth.TokenRefreshed, Session: fresh})
	return fresh, nil
}

func (p *Provider) OnSessionChange(fn func(auth.Event)) auth.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) emit(ev auth.Event) {
	p.mu.RLock()
	fns := make([]func(auth.Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
