// Package live keeps derived reads fresh under out-of-band writes: one
// logical channel per (table, filter) pair, each delivering row-level change
// events to an invalidation callback.
package live

import "context"

// Op is a row-level change kind.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Row is an opaque typed record as provided by the data backend.
type Row map[string]interface{}

// Str returns the row field as a string ("" when absent or not a string).
func (r Row) Str(field string) string {
	if r == nil {
		return ""
	}
	s, _ := r[field].(string)
	return s
}

// Bool returns the row field as a bool (false when absent or not a bool).
func (r Row) Bool(field string) bool {
	if r == nil {
		return false
	}
	b, _ := r[field].(bool)
	return b
}

type Change struct {
	Table string
	Op    Op
	Old   Row // nil on insert
	New   Row // nil on delete
}

// Filter narrows a channel to matching rows; nil matches everything.
type Filter func(Change) bool

// FieldEq filters on new-row (falling back to old-row) field equality;
// the usual shape is scoping a channel to the viewer's own rows.
func FieldEq(field, value string) Filter {
	return func(ch Change) bool {
		if ch.New != nil {
			return ch.New.Str(field) == value
		}
		return ch.Old.Str(field) == value
	}
}

// Unsubscribe closes one logical channel. Safe to call twice; every
// Subscribe has exactly one matching Unsubscribe, issued when the owning
// scope is torn down.
type Unsubscribe func()

// Broker is the change-stream contract of the data backend. Channels are
// independent: failure or closure of one never affects the others.
type Broker interface {
	// Subscribe opens a channel for table; fn is invoked for every matching
	// change until Unsubscribe is called or ctx is cancelled, whichever
	// comes first (cancellation releases the channel structurally, without
	// relying on caller discipline).
	Subscribe(ctx context.Context, table string, filter Filter, fn func(Change)) (Unsubscribe, error)
}
