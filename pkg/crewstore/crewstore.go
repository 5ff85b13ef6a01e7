// Package crewstore is the public entry point for the persistence layer.
//
// Example usage:
//
//	cfg := &config.Config{Driver: "rest", Endpoint: url, Credential: key}
//	store, err := crewstore.Open(cfg)
//	if err != nil {
//		// missing settings or missing tables surface here, never mid-run
//	}
//	defer store.Close()
//
//	err = store.Memory.Save(ctx, "agent_1_memory",
//		map[string]any{"note": "x"}, map[string]any{"agent": "a1"})
package crewstore

import (
	"context"
	"fmt"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/config"
	"github.com/crewstore/crewstore/internal/event"
	"github.com/crewstore/crewstore/internal/journal"
	"github.com/crewstore/crewstore/internal/logsink"
	"github.com/crewstore/crewstore/internal/memory"
	"github.com/crewstore/crewstore/internal/snapshot"
	"github.com/crewstore/crewstore/internal/telemetry"
)

// Store bundles the four persistence surfaces over one backing connection.
type Store struct {
	Memory    *memory.Store
	Journal   *journal.Journal
	Snapshots *snapshot.Store
	Logs      *logsink.Sink
	Events    *event.Bus

	client backing.Client
}

// Open validates cfg, connects the backing client, probes every required
// table, and wires the stores. Configuration and schema problems fail here,
// before any caller reaches a store operation.
func Open(cfg *config.Config) (*Store, error) {
	return OpenWithLogger(cfg, telemetry.NewLogger(cfg.Verbose))
}

// OpenWithLogger is Open with a caller-supplied logger (nil for silent).
func OpenWithLogger(cfg *config.Config, logger *telemetry.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := backing.Open(cfg.Driver, cfg.Endpoint, cfg.Credential, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backing store: %w", err)
	}
	if err := backing.ProbeAll(context.Background(), client); err != nil {
		client.Close()
		return nil, err
	}

	bus := event.NewBus(logger)
	if cfg.Verbose {
		bus.Register(event.NewLogHook("telemetry", nil, logger))
	}
	return &Store{
		Memory:    memory.New(client, bus, logger),
		Journal:   journal.New(client, logger),
		Snapshots: snapshot.New(client, logger),
		Logs:      logsink.New(client, logger),
		Events:    bus,
		client:    client,
	}, nil
}

// Close releases the backing connection.
func (s *Store) Close() error {
	return s.client.Close()
}
