// Package authstate owns the single source of truth for "who is logged in,
// with what entitlements". One Context serves one client context (a portal
// session); its lifecycle runs from Start to Stop.
//
// All state mutation happens on one dispatch goroutine fed by an event
// channel. Work triggered by a provider callback is always posted onto that
// channel, never run inline: calling back into the provider from within its
// own delivery callback deadlocks the provider.
package authstate

import (
	"context"
	"sync"
	"time"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/auth"
	"github.com/masjidku/backend/core/member"
)

// Phase names the authorization state machine states.
type Phase int

const (
	Unauthenticated Phase = iota
	Resolving
	Authorized
	Unauthorized
)

func (p Phase) String() string {
	switch p {
	case Unauthenticated:
		return "unauthenticated"
	case Resolving:
		return "resolving"
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// State is the authorization snapshot exposed to consumers. Loading is true
// exactly while resolving; a false Loading guarantees Role and Profile are
// settled (possibly to explicit absence) for the current Principal.
type State struct {
	Phase     Phase
	Principal *auth.Principal
	Role      *member.Role
	Profile   *member.Profile
	Loading   bool
}

const defaultResolveTimeout = 10 * time.Second

type Options struct {
	Provider auth.Provider
	Resolver *member.Resolver
	// ResolveTimeout bounds identity resolution; on expiry the state settles
	// to Unauthorized instead of loading forever.
	ResolveTimeout time.Duration
	Logger         core.Logger
}

type Context struct {
	opts Options

	events chan event
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	unsub     auth.Unsubscribe

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int

	// dispatch-goroutine only
	gen        int // resolution generation; stale results are discarded
	sawSession bool
}

// events

type (
	sessionEvent struct {
		kind      auth.EventKind
		session   *auth.Session
		bootstrap bool
	}
	resolvedEvent struct {
		principalID string
		gen         int
		identity    member.Identity
	}
	profileEvent struct {
		principalID string
		profile     *member.Profile
		done        chan struct{}
	}
	signOutEvent struct {
		done chan struct{}
	}
	event interface{ isEvent() }
)

func (sessionEvent) isEvent()  {}
func (resolvedEvent) isEvent() {}
func (profileEvent) isEvent()  {}
func (signOutEvent) isEvent()  {}

func New(opts Options) *Context {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	return &Context{
		opts:   opts,
		events: make(chan event, 16),
		done:   make(chan struct{}),
		subs:   make(map[int]func(State)),
		state:  State{Phase: Unauthenticated},
	}
}

// Start subscribes to the provider's session stream and then bootstraps any
// already-existing session. The subscription is established strictly before
// the bootstrap fetch resolves, so a transitional sign-out cannot be lost.
func (c *Context) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.unsub = c.opts.Provider.OnSessionChange(func(ev auth.Event) {
			c.post(sessionEvent{kind: ev.Kind, session: ev.Session})
		})
		go c.run()

		go func() {
			sess, err := c.opts.Provider.GetSession(ctx)
			if err != nil {
				if c.opts.Logger != nil {
					c.opts.Logger.Warn("session bootstrap failed", err)
				}
				return
			}
			if sess == nil {
				return // stay Unauthenticated
			}
			c.post(sessionEvent{kind: auth.SignedIn, session: sess, bootstrap: true})
		}()
	})
}

// Stop releases the provider subscription and halts dispatch. Idempotent.
func (c *Context) Stop() {
	c.stopOnce.Do(func() {
		if c.unsub != nil {
			c.unsub()
		}
		close(c.done)
	})
}

// Snapshot returns the latest committed state. Readers must re-read after
// any suspension point instead of branching on a stale copy.
func (c *Context) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe registers fn to run on every committed state change. fn runs on
// the dispatch goroutine and must not call back into the Context.
func (c *Context) Subscribe(fn func(State)) auth.Unsubscribe {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SignOut invokes the provider's sign-out and then clears local state
// regardless of the remote outcome: local authorization never survives a
// requested sign-out, even under network failure. Idempotent.
func (c *Context) SignOut(ctx context.Context) error {
	err := c.opts.Provider.SignOut(ctx)

	done := make(chan struct{})
	if c.post(signOutEvent{done: done}) {
		select {
		case <-done:
		case <-c.done:
		}
	}
	return err
}

// RefreshProfile refetches only the Profile for the current principal and
// commits it; used after a self profile edit or an approval push, without a
// full resolver round-trip.
func (c *Context) RefreshProfile(ctx context.Context) {
	st := c.Snapshot()
	if st.Principal == nil {
		return
	}
	profile := c.opts.Resolver.ResolveProfile(ctx, st.Principal.ID)

	done := make(chan struct{})
	if c.post(profileEvent{principalID: st.Principal.ID, profile: profile, done: done}) {
		select {
		case <-done:
		case <-c.done:
		}
	}
}

func (c *Context) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Context) run() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// dispatch computes the next state deterministically from (current state,
// event); it is the single writer of c.state.
func (c *Context) dispatch(ev event) {
	switch ev := ev.(type) {
	case sessionEvent:
		c.onSession(ev)
	case resolvedEvent:
		c.onResolved(ev)
	case profileEvent:
		c.onProfile(ev)
		close(ev.done)
	case signOutEvent:
		c.gen++ // discard any in-flight resolution
		c.sawSession = true
		c.commit(State{Phase: Unauthenticated})
		close(ev.done)
	}
}

func (c *Context) onSession(ev sessionEvent) {
	// a bootstrap result only counts if no live event beat it to the queue
	if ev.bootstrap && c.sawSession {
		return
	}
	c.sawSession = c.sawSession || !ev.bootstrap

	switch ev.kind {
	case auth.SignedOut:
		c.gen++
		c.commit(State{Phase: Unauthenticated})
	case auth.SignedIn, auth.TokenRefreshed:
		if ev.session == nil {
			c.gen++
			c.commit(State{Phase: Unauthenticated})
			return
		}
		cur := c.Snapshot()
		if ev.kind == auth.TokenRefreshed && cur.Principal != nil && cur.Principal.ID == ev.session.Principal.ID {
			// same principal, fresh token: entitlements unchanged
			return
		}
		c.startResolving(ev.session.Principal)
	}
}

func (c *Context) startResolving(p auth.Principal) {
	c.gen++
	gen := c.gen
	principal := p
	c.commit(State{Phase: Resolving, Principal: &principal, Loading: true})

	// the follow-up identity queries run on their own goroutine and report
	// back through the event channel
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ResolveTimeout)
		defer cancel()
		identity := c.opts.Resolver.Resolve(ctx, principal.ID)
		c.post(resolvedEvent{principalID: principal.ID, gen: gen, identity: identity})
	}()
}

func (c *Context) onResolved(ev resolvedEvent) {
	cur := c.Snapshot()
	// a result that arrives after a subsequent sign-out or sign-in is stale
	if ev.gen != c.gen || cur.Principal == nil || cur.Principal.ID != ev.principalID {
		return
	}
	next := State{
		Principal: cur.Principal,
		Role:      ev.identity.Role,
		Profile:   ev.identity.Profile,
	}
	if ev.identity.Role != nil {
		next.Phase = Authorized
	} else {
		next.Phase = Unauthorized
	}
	c.commit(next)
}

func (c *Context) onProfile(ev profileEvent) {
	cur := c.Snapshot()
	if cur.Loading || cur.Principal == nil || cur.Principal.ID != ev.principalID {
		return
	}
	cur.Profile = ev.profile
	c.commit(cur)
}

func (c *Context) commit(next State) {
	c.mu.Lock()
	c.state = next
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
