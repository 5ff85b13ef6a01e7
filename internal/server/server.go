// Package server exposes the persistence layer over HTTP, translating
// external create/list/get requests into store operations and internal error
// kinds into transport responses.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/crewstore/crewstore/internal/journal"
	"github.com/crewstore/crewstore/internal/logsink"
	"github.com/crewstore/crewstore/internal/memory"
	"github.com/crewstore/crewstore/internal/snapshot"
	"github.com/crewstore/crewstore/internal/telemetry"
)

// Server serves the store API.
type Server struct {
	mem    *memory.Store
	jrn    *journal.Journal
	snaps  *snapshot.Store
	logs   *logsink.Sink
	logger *telemetry.Logger
}

// New creates a server over the four stores.
func New(mem *memory.Store, jrn *journal.Journal, snaps *snapshot.Store, logs *logsink.Sink, logger *telemetry.Logger) *Server {
	return &Server{mem: mem, jrn: jrn, snaps: snaps, logs: logs, logger: logger}
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting store API", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down store API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Routes builds the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Memory
	mux.HandleFunc("GET /api/memory", s.handleListKeys)
	mux.HandleFunc("DELETE /api/memory", s.handleClearMemory)
	mux.HandleFunc("GET /api/memory/{key}", s.handleLoadMemory)
	mux.HandleFunc("PUT /api/memory/{key}", s.handleSaveMemory)
	mux.HandleFunc("DELETE /api/memory/{key}", s.handleDeleteMemory)
	mux.HandleFunc("POST /api/memory/search", s.handleSearchMemory)

	// Task output journal
	mux.HandleFunc("GET /api/results", s.handleLoadResults)
	mux.HandleFunc("POST /api/results", s.handleAddResult)
	mux.HandleFunc("DELETE /api/results", s.handleClearResults)
	mux.HandleFunc("PATCH /api/results/{index}", s.handleUpdateResult)

	// State snapshots
	mux.HandleFunc("GET /api/state", s.handleLoadState)
	mux.HandleFunc("POST /api/state/{task_id}", s.handleSaveState)
	mux.HandleFunc("DELETE /api/state", s.handleDeleteState)

	// Log events
	mux.HandleFunc("POST /api/logs", s.handleAppendLog)

	return mux
}
