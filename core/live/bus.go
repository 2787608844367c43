package live

import (
	"context"
	"sync"
)

// Bus is the in-process Broker: repositories publish their own writes into
// it, and it fans each change out to matching subscriptions. It also backs
// the Postgres listener adapter, which republishes NOTIFY payloads here.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]*subscription // table -> id -> sub
}

type subscription struct {
	filter Filter
	fn     func(Change)
}

var _ Broker = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]*subscription)}
}

func (b *Bus) Subscribe(ctx context.Context, table string, filter Filter, fn func(Change)) (Unsubscribe, error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	tbl, ok := b.subs[table]
	if !ok {
		tbl = make(map[int]*subscription)
		b.subs[table] = tbl
	}
	tbl[id] = &subscription{filter: filter, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	unsub := Unsubscribe(func() {
		once.Do(func() {
			b.mu.Lock()
			if tbl, ok := b.subs[table]; ok {
				delete(tbl, id)
				if len(tbl) == 0 {
					delete(b.subs, table)
				}
			}
			b.mu.Unlock()
		})
	})

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			unsub()
		}()
	}
	return unsub, nil
}

// Publish delivers ch to every matching subscription on its table.
// Callbacks run on the publisher's goroutine, outside the bus lock.
func (b *Bus) Publish(ch Change) {
	b.mu.RLock()
	fns := make([]func(Change), 0, len(b.subs[ch.Table]))
	for _, sub := range b.subs[ch.Table] {
		if sub.filter == nil || sub.filter(ch) {
			fns = append(fns, sub.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}
