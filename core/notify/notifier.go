package notify

import (
	"context"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/live"
)

// Notifier is the background worker that watches the tracked tables on the
// live channel, persists every derived notification and hands it to push
// (the websocket hub). One Start per process; Stop releases all channels.
type Notifier struct {
	broker live.Broker
	svc    Service
	push   func(Notification)
	log    core.Logger

	unsubs []live.Unsubscribe
}

func NewNotifier(broker live.Broker, svc Service, push func(Notification), log core.Logger) *Notifier {
	return &Notifier{broker: broker, svc: svc, push: push, log: log}
}

func (n *Notifier) Start(ctx context.Context) error {
	for _, table := range []string{TableProfiles, TableDonations, TableAnnouncements} {
		unsub, err := n.broker.Subscribe(ctx, table, nil, n.handle)
		if err != nil {
			n.Stop()
			return err
		}
		n.unsubs = append(n.unsubs, unsub)
	}
	return nil
}

func (n *Notifier) Stop() {
	for _, unsub := range n.unsubs {
		unsub()
	}
	n.unsubs = nil
}

func (n *Notifier) handle(ch live.Change) {
	notif, ok := Derive(ch)
	if !ok {
		return
	}
	saved, err := n.svc.Create(context.Background(), notif)
	if err != nil {
		if n.log != nil {
			n.log.Error("persisting notification", err)
		}
		saved = notif
	}
	if n.push != nil {
		n.push(saved)
	}
}
