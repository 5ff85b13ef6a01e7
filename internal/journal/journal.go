// Package journal records per-task execution outputs in the results table.
// Records are upserted by task identity so re-running a task overwrites its
// previous output instead of duplicating it, and loaded in execution order
// for replay.
package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/codec"
	"github.com/crewstore/crewstore/internal/telemetry"
)

const table = "results"

// ErrUnknownField reports an Update field outside the record vocabulary.
var ErrUnknownField = errors.New("unknown journal field")

// columns is the fixed field vocabulary of a journal record. Update rejects
// anything outside it so caller-supplied names never reach the store as
// identifiers.
var columns = map[string]bool{
	"task_id":         true,
	"expected_output": true,
	"output":          true,
	"task_index":      true,
	"inputs":          true,
	"was_replayed":    true,
	"timestamp":       true,
}

// Record is one task's execution output.
type Record struct {
	TaskID         string         `json:"task_id"`
	ExpectedOutput string         `json:"expected_output"`
	Output         any            `json:"output"`
	TaskIndex      int            `json:"task_index"`
	Inputs         map[string]any `json:"inputs"`
	WasReplayed    bool           `json:"was_replayed"`
	Timestamp      string         `json:"timestamp,omitempty"`
}

// Journal is the replay-aware record of task outputs. Task indices are
// unique within the store a journal is opened on: one journal is one logical
// run namespace, and callers reset it with DeleteAll before a fresh run.
type Journal struct {
	client backing.Client
	logger *telemetry.Logger
}

// New creates a journal on client. Logger may be nil.
func New(client backing.Client, logger *telemetry.Logger) *Journal {
	return &Journal{client: client, logger: logger}
}

// Add upserts rec keyed by its task id. Output and inputs pass through the
// canonical encoding; unencodable values fail the call. An upsert that
// reports no written row fails with WriteAffectedZeroError rather than being
// swallowed.
func (j *Journal) Add(ctx context.Context, rec Record) error {
	output, err := codec.Encode(rec.Output)
	if err != nil {
		return fmt.Errorf("journal: encode output for task %q: %w", rec.TaskID, err)
	}
	inputs := rec.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	encInputs, err := codec.Encode(inputs)
	if err != nil {
		return fmt.Errorf("journal: encode inputs for task %q: %w", rec.TaskID, err)
	}

	row := backing.Row{
		"task_id":         rec.TaskID,
		"expected_output": rec.ExpectedOutput,
		"output":          output,
		"task_index":      rec.TaskIndex,
		"inputs":          encInputs,
		"was_replayed":    rec.WasReplayed,
	}

	n, err := j.client.Upsert(ctx, table, "task_id", row)
	if err != nil {
		return fmt.Errorf("journal: add task %q: %w", rec.TaskID, err)
	}
	if n == 0 {
		return &backing.WriteAffectedZeroError{Table: table, Op: "upsert", Key: rec.TaskID}
	}

	j.logger.Debug("recorded task output", "task_id", rec.TaskID, "task_index", rec.TaskIndex)
	return nil
}

// Update patches the record at taskIndex with fields, which must name known
// record columns. A miss is a logged no-op, not an error: replays may
// legitimately target indices the journal has already advanced past.
func (j *Journal) Update(ctx context.Context, taskIndex int, fields map[string]any) error {
	changes := make(backing.Row, len(fields))
	for k, v := range fields {
		if !columns[k] {
			return fmt.Errorf("journal: update index %d: %w %q", taskIndex, ErrUnknownField, k)
		}
		enc, err := codec.Encode(v)
		if err != nil {
			return fmt.Errorf("journal: encode field %q for index %d: %w", k, taskIndex, err)
		}
		changes[k] = enc
	}

	n, err := j.client.Update(ctx, table, changes, []backing.Cond{backing.Eq("task_index", taskIndex)})
	if err != nil {
		return fmt.Errorf("journal: update index %d: %w", taskIndex, err)
	}
	if n == 0 {
		j.logger.Warn("no journal row at task_index, skipping update", "task_index", taskIndex)
	}
	return nil
}

// Load returns every record ordered ascending by task index. The ordering is
// load-bearing: replay logic treats position in the returned sequence as
// execution order.
func (j *Journal) Load(ctx context.Context) ([]Record, error) {
	rows, err := j.client.Select(ctx, table, backing.Query{OrderBy: "task_index"})
	if err != nil {
		return nil, fmt.Errorf("journal: load: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

// DeleteAll wipes the journal, resetting state before a fresh run.
func (j *Journal) DeleteAll(ctx context.Context) error {
	if _, err := j.client.Delete(ctx, table, []backing.Cond{backing.Neq("task_id", "")}); err != nil {
		return fmt.Errorf("journal: delete all: %w", err)
	}
	return nil
}

func recordFromRow(row backing.Row) Record {
	rec := Record{
		Output:    codec.DecodeValue(row["output"]),
		Inputs:    codec.DecodeMap(row["inputs"]),
		TaskIndex: asInt(row["task_index"]),
	}
	if v, ok := row["task_id"].(string); ok {
		rec.TaskID = v
	}
	if v, ok := row["expected_output"].(string); ok {
		rec.ExpectedOutput = v
	}
	rec.WasReplayed = asBool(row["was_replayed"])
	if v, ok := row["timestamp"].(string); ok {
		rec.Timestamp = v
	}
	return rec
}

// asInt tolerates the numeric shapes the two backends produce: int64 from
// SQLite, float64 from JSON.
func asInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case float64:
		return int(x)
	case int:
		return x
	}
	return 0
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return false
}
