package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Hook processes lifecycle events.
type Hook interface {
	Name() string
	// Matches reports whether the hook handles this event type.
	Matches(t Type) bool
	// IsBlocking reports whether the emitter waits for this hook.
	IsBlocking() bool
	// Handle processes an event. For blocking hooks an error fails the emit.
	Handle(ev Event) error
}

type baseHook struct {
	name     string
	events   []Type
	blocking bool
}

func (h *baseHook) Name() string     { return h.name }
func (h *baseHook) IsBlocking() bool { return h.blocking }

func (h *baseHook) Matches(t Type) bool {
	if len(h.events) == 0 {
		return true
	}
	for _, ev := range h.events {
		if ev == t {
			return true
		}
	}
	return false
}

// FuncHook wraps a plain function as a hook.
type FuncHook struct {
	baseHook
	fn func(ev Event) error
}

// NewFuncHook creates a hook calling fn for the given event types (all
// types when events is empty).
func NewFuncHook(name string, events []Type, blocking bool, fn func(ev Event) error) *FuncHook {
	return &FuncHook{
		baseHook: baseHook{name: name, events: events, blocking: blocking},
		fn:       fn,
	}
}

func (h *FuncHook) Handle(ev Event) error { return h.fn(ev) }

// WebhookHook POSTs event JSON to a URL. Used to notify external consumers
// of memory and journal activity.
type WebhookHook struct {
	baseHook
	URL     string
	Timeout time.Duration
}

func NewWebhookHook(name, url string, events []Type, blocking bool) *WebhookHook {
	return &WebhookHook{
		baseHook: baseHook{name: name, events: events, blocking: blocking},
		URL:      url,
		Timeout:  10 * time.Second,
	}
}

func (h *WebhookHook) Handle(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	client := &http.Client{Timeout: h.Timeout}
	resp, err := client.Post(h.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s failed: %w", h.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook %s returned status %d", h.name, resp.StatusCode)
	}
	return nil
}

// LogHook logs events through the bus logger interface. Always non-blocking.
type LogHook struct {
	baseHook
	logger interface {
		Info(msg string, keyvals ...any)
	}
}

func NewLogHook(name string, events []Type, logger interface {
	Info(msg string, keyvals ...any)
}) *LogHook {
	return &LogHook{
		baseHook: baseHook{name: name, events: events, blocking: false},
		logger:   logger,
	}
}

func (h *LogHook) Handle(ev Event) error {
	keyvals := make([]any, 0, len(ev.Data)*2+2)
	keyvals = append(keyvals, "event_type", string(ev.Type))
	for k, v := range ev.Data {
		keyvals = append(keyvals, k, v)
	}
	h.logger.Info("store event", keyvals...)
	return nil
}
