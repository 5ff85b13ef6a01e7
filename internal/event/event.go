// Package event dispatches store lifecycle events to registered hooks, so
// consumers can observe memory and journal activity without the stores
// depending on them.
package event

import "time"

// Type identifies the kind of store lifecycle event.
type Type string

const (
	MemorySaveStarted    Type = "memory.save.started"
	MemorySaveCompleted  Type = "memory.save.completed"
	MemorySaveFailed     Type = "memory.save.failed"
	MemoryQueryStarted   Type = "memory.query.started"
	MemoryQueryCompleted Type = "memory.query.completed"
	MemoryQueryFailed    Type = "memory.query.failed"
)

// Event carries data about one lifecycle occurrence.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// New creates an event stamped with the current time.
func New(t Type, data map[string]any) Event {
	return Event{Type: t, Timestamp: time.Now(), Data: data}
}
