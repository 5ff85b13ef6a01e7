// Package testutil provides shared helpers for store tests: a throwaway
// sqlite-backed client and an event-capturing hook.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/event"
)

// NewClient opens a sqlite backing client on a temp database that is torn
// down with the test.
func NewClient(t *testing.T) backing.Client {
	t.Helper()
	client, err := backing.NewSQLiteClient(filepath.Join(t.TempDir(), "crewstore_test.db"))
	if err != nil {
		t.Fatalf("failed to open test backing store: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// EventRecorder captures emitted events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

// NewRecordingBus returns a bus with a recorder registered as a blocking
// hook, so captured events are visible as soon as Emit returns.
func NewRecordingBus() (*event.Bus, *EventRecorder) {
	rec := &EventRecorder{}
	bus := event.NewBus(nil)
	bus.Register(event.NewFuncHook("recorder", nil, true, func(ev event.Event) error {
		rec.mu.Lock()
		rec.events = append(rec.events, ev)
		rec.mu.Unlock()
		return nil
	}))
	return bus, rec
}

// Events returns a copy of the captured events.
func (r *EventRecorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the captured event types in order.
func (r *EventRecorder) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
