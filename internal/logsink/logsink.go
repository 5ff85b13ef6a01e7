// Package logsink appends structured events to the logs table. Write-only:
// this layer exposes no read surface for log events, consumption belongs to
// external tooling.
package logsink

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/codec"
	"github.com/crewstore/crewstore/internal/telemetry"
)

const table = "logs"

// Entry is one log event: a fixed vocabulary of optional named fields plus
// an open metadata map. Zero-valued fields are not written.
type Entry struct {
	TaskName string         `json:"task_name,omitempty"`
	Task     string         `json:"task,omitempty"`
	Agent    string         `json:"agent,omitempty"`
	Status   string         `json:"status,omitempty"`
	Output   string         `json:"output,omitempty"`
	Input    string         `json:"input,omitempty"`
	Message  string         `json:"message,omitempty"`
	Level    string         `json:"level,omitempty"`
	Crew     string         `json:"crew,omitempty"`
	Flow     string         `json:"flow,omitempty"`
	Tool     string         `json:"tool,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration float64        `json:"duration,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Sink appends log events.
type Sink struct {
	client backing.Client
	logger *telemetry.Logger
}

// New creates a sink on client. Logger may be nil.
func New(client backing.Client, logger *telemetry.Logger) *Sink {
	return &Sink{client: client, logger: logger}
}

// Log appends one event. The timestamp column is left to the store's default
// so events carry a server-stamped time. An insert reporting no written row
// fails with WriteAffectedZeroError.
func (s *Sink) Log(ctx context.Context, e Entry) error {
	row := backing.Row{"id": uuid.NewString()}

	setIf(row, "task_name", e.TaskName)
	setIf(row, "task", e.Task)
	setIf(row, "agent", e.Agent)
	setIf(row, "status", e.Status)
	setIf(row, "output", e.Output)
	setIf(row, "input", e.Input)
	setIf(row, "message", e.Message)
	setIf(row, "level", e.Level)
	setIf(row, "crew", e.Crew)
	setIf(row, "flow", e.Flow)
	setIf(row, "tool", e.Tool)
	setIf(row, "error", e.Error)
	if e.Duration != 0 {
		row["duration"] = e.Duration
	}
	if e.Metadata != nil {
		enc, err := codec.Encode(e.Metadata)
		if err != nil {
			return fmt.Errorf("logsink: encode metadata: %w", err)
		}
		row["metadata"] = enc
	}

	n, err := s.client.Insert(ctx, table, row)
	if err != nil {
		return fmt.Errorf("logsink: append: %w", err)
	}
	if n == 0 {
		return &backing.WriteAffectedZeroError{Table: table, Op: "insert", Key: e.Message}
	}

	s.logger.Debug("appended log event", "message", e.Message)
	return nil
}

func setIf(row backing.Row, col, val string) {
	if val != "" {
		row[col] = val
	}
}
