package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/masjidku/backend/apps/api/echo"
	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/announcement"
	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/live"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
	emailsvc "github.com/masjidku/backend/services/email"
	logsvc "github.com/masjidku/backend/services/logger"
	"github.com/masjidku/backend/storage/database"
	sqlxrepos "github.com/masjidku/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, conf.AppName+" : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
		logger.Enable(true)
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(std, err)
	defer func() { _ = db.Close() }()

	// live channel: Postgres LISTEN/NOTIFY republished on an in-process bus
	bus := live.NewBus()
	listener, err := database.NewListener(conf, bus, logger)
	errAndDie(std, err)
	defer func() { _ = listener.Close() }()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	memberRepo := sqlxrepos.NewMemberRepository(db)
	memberSvc := member.NewService(memberRepo, mailSvc, conf)
	resolver := member.NewResolver(memberRepo, logger)
	donationSvc := donation.NewService(sqlxrepos.NewDonationRepository(db))
	announcementSvc := announcement.NewService(sqlxrepos.NewAnnouncementRepository(db))
	notifySvc := notify.NewService(sqlxrepos.NewNotificationRepository(db))

	// push pipeline: row change -> derived notification -> websocket hub
	hub := echoapi.NewHub()
	go hub.Run()
	notifier := notify.NewNotifier(bus, notifySvc, hub.Push, logger)
	errAndDie(std, notifier.Start(context.Background()))
	defer notifier.Stop()

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:            conf.Server.Address(),
		Conf:            conf,
		Logger:          logger,
		MemberSvc:       memberSvc,
		DonationSvc:     donationSvc,
		AnnouncementSvc: announcementSvc,
		NotifySvc:       notifySvc,
		Resolver:        resolver,
		Broker:          bus,
		Hub:             hub,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		_ = app.Stop(context.Background())
	}()
	app.Start()
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
