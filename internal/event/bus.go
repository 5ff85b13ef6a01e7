package event

import (
	"fmt"
	"sync"
)

// Logger is the minimal logging surface the bus needs, kept as a local
// interface so the package stays free of telemetry imports.
type Logger interface {
	Warn(msg string, keyvals ...any)
}

// Bus fans events out to registered hooks. Blocking hooks run inline in
// registration order and their first error is returned to the emitter;
// non-blocking hooks run in goroutines and their failures are only logged.
// A nil Bus is safe: every method is a no-op.
type Bus struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger Logger
}

// NewBus creates a bus. A nil logger silences non-blocking hook failures.
func NewBus(logger Logger) *Bus {
	return &Bus{logger: logger}
}

// Register adds a hook.
func (b *Bus) Register(h Hook) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.hooks = append(b.hooks, h)
	b.mu.Unlock()
}

// Emit dispatches ev to every hook whose filter matches its type.
func (b *Bus) Emit(ev Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	hooks := make([]Hook, len(b.hooks))
	copy(hooks, b.hooks)
	b.mu.RUnlock()

	for _, h := range hooks {
		if !h.Matches(ev.Type) {
			continue
		}
		if h.IsBlocking() {
			if err := h.Handle(ev); err != nil {
				return fmt.Errorf("blocking hook %s failed: %w", h.Name(), err)
			}
			continue
		}
		go b.dispatch(h, ev)
	}
	return nil
}

func (b *Bus) dispatch(h Hook, ev Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Warn("event hook panicked",
				"hook", h.Name(), "event", string(ev.Type), "panic", r)
		}
	}()
	if err := h.Handle(ev); err != nil && b.logger != nil {
		b.logger.Warn("event hook failed",
			"hook", h.Name(), "event", string(ev.Type), "error", err)
	}
}
