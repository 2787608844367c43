package echoapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/auth"
	"github.com/masjidku/backend/core/authstate"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type liveApi struct {
	conf     *core.Config
	resolver *member.Resolver
	broker   live.Broker
	hub      *Hub
	log      core.Logger
}

func registerLiveAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	conf *core.Config,
	resolver *member.Resolver,
	broker live.Broker,
	hub *Hub,
	log core.Logger,
) {
	api := liveApi{conf: conf, resolver: resolver, broker: broker, hub: hub, log: log}
	g.GET("/live", api.connect, jwt)
}

// connect upgrades the request and binds one authorization context to the
// connection. The context re-resolves entitlements on session transitions and
// refreshes the profile whenever the member's own profile row changes, so an
// approval made elsewhere reaches the open session without a reload.
func (api *liveApi) connect(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	c := &client{
		memberID: claims.Subject,
		conn:     conn,
		send:     make(chan []byte, 16),
	}

	connCtx, cancel := context.WithCancel(context.Background())

	provider := newSessionProvider(auth.Session{
		Principal: auth.Principal{ID: claims.Subject, Email: claims.Email},
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	})
	authCtx := authstate.New(authstate.Options{
		Provider:       provider,
		Resolver:       api.resolver,
		ResolveTimeout: api.conf.Server.ResolveTimeout,
		Logger:         api.log,
	})
	unsubState := authCtx.Subscribe(func(st authstate.State) {
		c.pushJSON("state", newStatePayload(st))
	})
	authCtx.Start(connCtx)

	unsubProfile, err := api.broker.Subscribe(
		connCtx, notify.TableProfiles, live.FieldEq("member_id", claims.Subject),
		func(live.Change) {
			go authCtx.RefreshProfile(connCtx)
		},
	)
	if err != nil {
		cancel()
		authCtx.Stop()
		unsubState()
		_ = conn.Close()
		return errors.Wrap(err, "subscribing to profile changes")
	}

	api.hub.register <- c

	cleanup := func() {
		// quiesce the push sources before the hub closes the send channel
		unsubProfile()
		unsubState()
		authCtx.Stop()
		cancel()
		api.hub.unregister <- c
		_ = conn.Close()
	}

	go c.writePump()
	go api.readPump(connCtx, c, authCtx, cleanup)
	return nil
}

func (api *liveApi) readPump(ctx context.Context, c *client, authCtx *authstate.Context, cleanup func()) {
	defer cleanup()
	for {
		var msg struct {
			Action string `json:"action"`
		}
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "signout":
			if err := authCtx.SignOut(ctx); err != nil && api.log != nil {
				api.log.Warn("live signout", err)
			}
		case "refresh_profile":
			authCtx.RefreshProfile(ctx)
		}
	}
}

func (c *client) writePump() {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *client) pushJSON(kind string, data interface{}) {
	payload, err := marshalWSMessage(kind, data)
	if err != nil {
		return
	}
	c.push(payload)
}

type statePayload struct {
	Phase     string          `json:"phase"`
	Principal *auth.Principal `json:"principal"`
	Role      *member.Role    `json:"role"`
	Profile   *member.Profile `json:"profile"`
	Loading   bool            `json:"loading"`
}

func newStatePayload(st authstate.State) statePayload {
	return statePayload{
		Phase:     st.Phase.String(),
		Principal: st.Principal,
		Role:      st.Role,
		Profile:   st.Profile,
		Loading:   st.Loading,
	}
}

// sessionProvider adapts one verified request token into the auth collaborator
// contract for the lifetime of a websocket connection. Sign-in happens over
// REST; the connection only ever observes or clears its own session.
type sessionProvider struct {
	mu     sync.RWMutex
	sess   *auth.Session
	subs   map[int]func(auth.Event)
	nextID int
}

var _ auth.Provider = (*sessionProvider)(nil)

func newSessionProvider(sess auth.Session) *sessionProvider {
	return &sessionProvider{
		sess: &sess,
		subs: make(map[int]func(auth.Event)),
	}
}

func (p *sessionProvider) SignIn(context.Context, string, string) (*auth.Session, error) {
	return nil, auth.ErrAuthenticationFailed
}

func (p *sessionProvider) SignOut(context.Context) error {
	p.mu.Lock()
	had := p.sess != nil
	p.sess = nil
	p.mu.Unlock()
	if had {
		p.emit(auth.Event{Kind: auth.SignedOut})
	}
	return nil
}

func (p *sessionProvider) GetSession(context.Context) (*auth.Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.sess.Expired() {
		return nil, nil
	}
	return p.sess, nil
}

func (p *sessionProvider) OnSessionChange(fn func(auth.Event)) auth.Unsubscribe {
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

func (p *sessionProvider) emit(ev auth.Event) {
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
