// Package snapshot stores immutable point-in-time copies of execution state
// in the crew_state table. Snapshots are only ever inserted or bulk-deleted,
// never updated: each save is a new row.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/codec"
	"github.com/crewstore/crewstore/internal/telemetry"
)

const table = "crew_state"

// Snapshot is one stored state snapshot.
type Snapshot struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	StateData map[string]any `json:"state_data"`
	Timestamp string         `json:"timestamp"`
}

// Store persists crew state snapshots.
type Store struct {
	client backing.Client
	logger *telemetry.Logger
}

// New creates a snapshot store on client. Logger may be nil.
func New(client backing.Client, logger *telemetry.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Save inserts a new snapshot for taskID. Repeated saves for the same task
// append distinct snapshots; nothing is overwritten. An insert reporting no
// written row fails with WriteAffectedZeroError.
func (s *Store) Save(ctx context.Context, taskID string, stateData map[string]any) error {
	enc, err := codec.Encode(stateData)
	if err != nil {
		return fmt.Errorf("snapshot: encode state for task %q: %w", taskID, err)
	}

	row := backing.Row{
		"id":         uuid.NewString(),
		"task_id":    taskID,
		"state_data": enc,
		"timestamp":  time.Now().UTC().Format(backing.TimestampFormat),
	}

	n, err := s.client.Insert(ctx, table, row)
	if err != nil {
		return fmt.Errorf("snapshot: save for task %q: %w", taskID, err)
	}
	if n == 0 {
		return &backing.WriteAffectedZeroError{Table: table, Op: "insert", Key: taskID}
	}

	s.logger.Debug("saved crew state snapshot", "task_id", taskID)
	return nil
}

// Load returns snapshots ordered ascending by timestamp, filtered to one
// task when taskID is non-empty.
func (s *Store) Load(ctx context.Context, taskID string) ([]Snapshot, error) {
	q := backing.Query{OrderBy: "timestamp"}
	if taskID != "" {
		q.Conds = []backing.Cond{backing.Eq("task_id", taskID)}
	}
	rows, err := s.client.Select(ctx, table, q)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}

	snaps := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		snap := Snapshot{StateData: codec.DecodeMap(row["state_data"])}
		if v, ok := row["id"].(string); ok {
			snap.ID = v
		}
		if v, ok := row["task_id"].(string); ok {
			snap.TaskID = v
		}
		if v, ok := row["timestamp"].(string); ok {
			snap.Timestamp = v
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Delete removes the snapshots for taskID, or every snapshot when taskID is
// empty.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	conds := []backing.Cond{backing.Neq("id", "")}
	if taskID != "" {
		conds = []backing.Cond{backing.Eq("task_id", taskID)}
	}
	if _, err := s.client.Delete(ctx, table, conds); err != nil {
		return fmt.Errorf("snapshot: delete for task %q: %w", taskID, err)
	}
	return nil
}
