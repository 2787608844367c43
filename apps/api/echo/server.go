package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/announcement"
	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool

		Conf   *core.Config
		Logger core.Logger

		MemberSvc       member.Service
		DonationSvc     donation.Service
		AnnouncementSvc announcement.Service
		NotifySvc       notify.Service
		Resolver        *member.Resolver
		Broker          live.Broker
		Hub             *Hub
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	gd := newGuard(conf, s.opts.Resolver)

	registerAuthAPI(v1, jwt, conf, s.opts.MemberSvc)
	registerMemberAPI(v1, jwt, gd, s.opts.MemberSvc)
	registerDonationAPI(v1, jwt, gd, s.opts.DonationSvc)
	registerAnnouncementAPI(v1, jwt, gd, s.opts.AnnouncementSvc)
	registerNotificationAPI(v1, jwt, gd, s.opts.NotifySvc)

	if s.opts.Hub != nil {
		registerLiveAPI(v1, jwt, conf, s.opts.Resolver, s.opts.Broker, s.opts.Hub, s.opts.Logger)
	}
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to MasjidKu API!")
}
