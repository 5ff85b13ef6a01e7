// Package memory implements the key/value agent memory store backed by the
// memory table: opaque values with metadata, searchable by field equality.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/codec"
	"github.com/crewstore/crewstore/internal/event"
	"github.com/crewstore/crewstore/internal/telemetry"
)

const table = "memory"

// Record is one stored memory entry.
type Record struct {
	Key       string         `json:"key"`
	Value     any            `json:"value"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// Store persists agent memory. At most one record exists per key.
type Store struct {
	client backing.Client
	bus    *event.Bus
	logger *telemetry.Logger
}

// New creates a memory store on client. Bus and logger may be nil.
func New(client backing.Client, bus *event.Bus, logger *telemetry.Logger) *Store {
	return &Store{client: client, bus: bus, logger: logger}
}

// emit dispatches a lifecycle event. Hook failures are logged, never allowed
// to fail the store operation they observe.
func (s *Store) emit(ev event.Event) {
	if err := s.bus.Emit(ev); err != nil {
		s.logger.Warn("memory event hook failed", "event", string(ev.Type), "error", err)
	}
}

// Save upserts value under key: an update matched by key, falling back to an
// insert stamped with created_at when no row existed. Values that cannot be
// canonically encoded fail the call.
func (s *Store) Save(ctx context.Context, key string, value any, metadata map[string]any) error {
	s.emit(event.New(event.MemorySaveStarted, map[string]any{
		"key": key, "metadata": metadata,
	}))
	start := time.Now()

	err := s.save(ctx, key, value, metadata)
	if err != nil {
		s.emit(event.New(event.MemorySaveFailed, map[string]any{
			"key": key, "error": err.Error(),
		}))
		return err
	}

	s.emit(event.New(event.MemorySaveCompleted, map[string]any{
		"key": key, "elapsed_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}))
	return nil
}

func (s *Store) save(ctx context.Context, key string, value any, metadata map[string]any) error {
	valueText, err := codec.EncodeToString(value)
	if err != nil {
		return fmt.Errorf("memory: encode value for key %q: %w", key, err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	encMeta, err := codec.Encode(metadata)
	if err != nil {
		return fmt.Errorf("memory: encode metadata for key %q: %w", key, err)
	}

	now := time.Now().UTC().Format(backing.TimestampFormat)
	changes := backing.Row{
		"value":      valueText,
		"metadata":   encMeta,
		"updated_at": now,
	}

	n, err := s.client.Update(ctx, table, changes, []backing.Cond{backing.Eq("key", key)})
	if err != nil {
		return fmt.Errorf("memory: save key %q: %w", key, err)
	}
	if n > 0 {
		return nil
	}

	changes["key"] = key
	changes["created_at"] = now
	if _, err := s.client.Insert(ctx, table, changes); err != nil {
		return fmt.Errorf("memory: save key %q: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key. Absence of the key is a normal
// outcome reported through found, never an error. A stored value that no
// longer parses is returned raw rather than failing the read.
func (s *Store) Load(ctx context.Context, key string) (value any, found bool, err error) {
	rows, err := s.client.Select(ctx, table, backing.Query{
		Conds:   []backing.Cond{backing.Eq("key", key)},
		Columns: []string{"value"},
		Limit:   1,
	})
	if err != nil {
		return nil, false, fmt.Errorf("memory: load key %q: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	decoded, derr := codec.Decode(rows[0]["value"])
	if derr != nil {
		var de *codec.DecodeError
		if errors.As(derr, &de) {
			s.logger.Debug("memory value not structured, returning raw", "key", key)
			return rows[0]["value"], true, nil
		}
		return nil, false, derr
	}
	return decoded, true, nil
}

// Delete removes key and reports whether a row existed. Idempotent: deleting
// an absent key returns false without error.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Delete(ctx, table, []backing.Cond{backing.Eq("key", key)})
	if err != nil {
		return false, fmt.Errorf("memory: delete key %q: %w", key, err)
	}
	return n > 0, nil
}

// Search returns records matching every entry of predicate, a field-to-value
// equality map. The reserved "metadata" field holds a nested map whose
// entries each become an independent JSON filter, all ANDed. Results are
// unordered and bounded by limit.
func (s *Store) Search(ctx context.Context, predicate map[string]any, limit int) ([]Record, error) {
	s.emit(event.New(event.MemoryQueryStarted, map[string]any{
		"predicate": predicate, "limit": limit,
	}))
	start := time.Now()

	var conds []backing.Cond
	for field, val := range predicate {
		if field == "metadata" {
			nested, ok := val.(map[string]any)
			if !ok {
				err := fmt.Errorf("memory: search: metadata predicate must be a map, got %T", val)
				s.emit(event.New(event.MemoryQueryFailed, map[string]any{"error": err.Error()}))
				return nil, err
			}
			for mk, mv := range nested {
				conds = append(conds, backing.EqJSON("metadata", mk, mv))
			}
			continue
		}
		conds = append(conds, backing.Eq(field, val))
	}

	rows, err := s.client.Select(ctx, table, backing.Query{Conds: conds, Limit: limit})
	if err != nil {
		s.emit(event.New(event.MemoryQueryFailed, map[string]any{"error": err.Error()}))
		return nil, fmt.Errorf("memory: search: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}

	s.emit(event.New(event.MemoryQueryCompleted, map[string]any{
		"results":    len(records),
		"elapsed_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}))
	return records, nil
}

// ListKeys returns all stored keys, restricted to those starting with prefix
// when prefix is non-empty.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	q := backing.Query{Columns: []string{"key"}}
	if prefix != "" {
		q.Conds = []backing.Cond{backing.Like("key", prefix+"%")}
	}
	rows, err := s.client.Select(ctx, table, q)
	if err != nil {
		return nil, fmt.Errorf("memory: list keys: %w", err)
	}
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if k, ok := row["key"].(string); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.client.Delete(ctx, table, []backing.Cond{backing.Neq("key", "")}); err != nil {
		return fmt.Errorf("memory: clear: %w", err)
	}
	return nil
}

func recordFromRow(row backing.Row) Record {
	rec := Record{
		Value:    codec.DecodeValue(row["value"]),
		Metadata: codec.DecodeMap(row["metadata"]),
	}
	if k, ok := row["key"].(string); ok {
		rec.Key = k
	}
	if v, ok := row["created_at"].(string); ok {
		rec.CreatedAt = v
	}
	if v, ok := row["updated_at"].(string); ok {
		rec.UpdatedAt = v
	}
	return rec
}
