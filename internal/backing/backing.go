// Package backing provides table-scoped access to the relational store that
// holds all durable records: agent memory, task outputs, crew state snapshots,
// and log events. Two backends implement the same contract: a PostgREST-style
// remote store and an embedded SQLite database for local runs.
package backing

import (
	"context"
	"fmt"
)

// TimestampFormat is the canonical wire format for timestamp columns.
// Fixed-width fractional seconds so string ordering matches time ordering.
const TimestampFormat = "2006-01-02T15:04:05.000000000Z"

// Row is one record as stored in (or read from) a table. Values are
// primitives, strings, or JSON-compatible maps and slices.
type Row map[string]any

// Cond is a single filter condition on a column. Path, when set, addresses a
// key inside a JSON column.
type Cond struct {
	Column string
	Op     string // "eq", "neq", "like"
	Path   string
	Value  any
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: "eq", Value: value}
}

// Neq matches rows where column does not equal value.
func Neq(column string, value any) Cond {
	return Cond{Column: column, Op: "neq", Value: value}
}

// Like matches rows where column matches a SQL LIKE pattern (% wildcard).
func Like(column, pattern string) Cond {
	return Cond{Column: column, Op: "like", Value: pattern}
}

// EqJSON matches rows where the named key inside a JSON column equals value.
func EqJSON(column, path string, value any) Cond {
	return Cond{Column: column, Op: "eq", Path: path, Value: value}
}

// Query shapes a Select: filters, ordering, projection, and a result bound.
type Query struct {
	Conds      []Cond
	OrderBy    string
	Descending bool
	Limit      int
	Columns    []string
}

// Client is the uniform surface over the backing store. Every call is one
// synchronous round trip; no call retries internally. Write methods report
// how many rows they touched so callers can distinguish a successful round
// trip that matched nothing from a transport failure.
type Client interface {
	Insert(ctx context.Context, table string, row Row) (int64, error)
	Upsert(ctx context.Context, table, conflictColumn string, row Row) (int64, error)
	Update(ctx context.Context, table string, changes Row, conds []Cond) (int64, error)
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Delete(ctx context.Context, table string, conds []Cond) (int64, error)

	// Probe issues a minimal read against the table to verify it exists and
	// is accessible. Any failure is a SchemaError.
	Probe(ctx context.Context, table, column string) error

	Close() error
}

// probeTarget pairs a required table with a column known to exist in it.
type probeTarget struct {
	table  string
	column string
}

// requiredTables lists every table this layer depends on. Probed at startup
// so schema problems surface before the first real operation.
var requiredTables = []probeTarget{
	{table: "memory", column: "key"},
	{table: "results", column: "task_id"},
	{table: "crew_state", column: "id"},
	{table: "logs", column: "id"},
}

// Open constructs a Client for the given driver. "rest" talks to a remote
// PostgREST-dialect store at endpoint using credential; "sqlite" (or empty)
// opens an embedded database at path.
func Open(driver, endpoint, credential, path string) (Client, error) {
	switch driver {
	case "rest":
		return NewRESTClient(endpoint, credential), nil
	case "sqlite", "":
		return NewSQLiteClient(path)
	default:
		return nil, fmt.Errorf("unsupported backing driver: %s", driver)
	}
}

// ProbeAll verifies every required table with a minimal read. Returns the
// first SchemaError encountered.
func ProbeAll(ctx context.Context, c Client) error {
	for _, t := range requiredTables {
		if err := c.Probe(ctx, t.table, t.column); err != nil {
			return err
		}
	}
	return nil
}
