package database

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/live"
)

const changeChannel = "masjidku_changes"

// Listener adapts Postgres LISTEN/NOTIFY to the live broker contract: the
// row-change triggers publish JSON payloads which are republished on an
// in-process bus. Out-of-band writes (another node, psql) reach subscribers
// the same way in-process ones do.
type Listener struct {
	pql *pq.Listener
	bus *live.Bus
	log core.Logger

	done chan struct{}
}

type changePayload struct {
	Table string   `json:"table"`
	Op    string   `json:"op"`
	Old   live.Row `json:"old"`
	New   live.Row `json:"new"`
}

func NewListener(conf *core.Config, bus *live.Bus, log core.Logger) (*Listener, error) {
	l := &Listener{
		bus:  bus,
		log:  log,
		done: make(chan struct{}),
	}
	l.pql = pq.NewListener(DSN(conf), 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && log != nil {
			log.Warn("pq listener event", err)
		}
	})
	if err := l.pql.Listen(changeChannel); err != nil {
		return nil, errors.Wrap(err, "listening on change channel")
	}
	go l.run()
	return l, nil
}

func (l *Listener) Bus() *live.Bus { return l.bus }

func (l *Listener) run() {
	for {
		select {
		case <-l.done:
			return
		case n := <-l.pql.Notify:
			if n == nil { // reconnect marker
				continue
			}
			l.republish(n.Extra)
		case <-time.After(90 * time.Second):
			// keep the connection honest
			go func() { _ = l.pql.Ping() }()
		}
	}
}

func (l *Listener) republish(payload string) {
	var p changePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		if l.log != nil {
			l.log.Warn("decoding change payload", err)
		}
		return
	}
	l.bus.Publish(live.Change{
		Table: p.Table,
		Op:    live.Op(p.Op),
		Old:   p.Old,
		New:   p.New,
	})
}

func (l *Listener) Close() error {
	close(l.done)
	return l.pql.Close()
}
