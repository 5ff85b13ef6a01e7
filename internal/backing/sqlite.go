package backing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient implements Client on an embedded database. Used for local
// runs and tests; the schema mirrors the remote store's tables.
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens (or creates) the database at path and ensures the
// four tables exist.
func NewSQLiteClient(path string) (*SQLiteClient, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backing database: %w", err)
	}

	c := &SQLiteClient{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate backing database: %w", err)
	}
	return c, nil
}

func (c *SQLiteClient) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory (
		key TEXT PRIMARY KEY,
		value TEXT,
		metadata TEXT,
		created_at TEXT,
		updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS results (
		task_id TEXT PRIMARY KEY,
		expected_output TEXT,
		output TEXT,
		task_index INTEGER,
		inputs TEXT,
		was_replayed BOOLEAN DEFAULT 0,
		timestamp TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_results_task_index ON results(task_index);

	CREATE TABLE IF NOT EXISTS crew_state (
		id TEXT PRIMARY KEY,
		task_id TEXT,
		state_data TEXT,
		timestamp TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_crew_state_task_id ON crew_state(task_id);

	CREATE TABLE IF NOT EXISTS logs (
		id TEXT PRIMARY KEY,
		timestamp TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		task_name TEXT,
		task TEXT,
		agent TEXT,
		status TEXT,
		output TEXT,
		input TEXT,
		message TEXT,
		level TEXT,
		crew TEXT,
		flow TEXT,
		tool TEXT,
		error TEXT,
		duration REAL,
		metadata TEXT
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLiteClient) Insert(ctx context.Context, table string, row Row) (int64, error) {
	cols, args, err := rowArgs(row)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &ConnectivityError{Op: "insert", Table: table, Err: err}
	}
	return res.RowsAffected()
}

func (c *SQLiteClient) Upsert(ctx context.Context, table, conflictColumn string, row Row) (int64, error) {
	cols, args, err := rowArgs(row)
	if err != nil {
		return 0, fmt.Errorf("upsert into %s: %w", table, err)
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")

	var sets []string
	for _, col := range cols {
		if col != conflictColumn {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders, conflictColumn, strings.Join(sets, ", "))

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &ConnectivityError{Op: "upsert", Table: table, Err: err}
	}
	return res.RowsAffected()
}

func (c *SQLiteClient) Update(ctx context.Context, table string, changes Row, conds []Cond) (int64, error) {
	cols, args, err := rowArgs(changes)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	var sets []string
	for _, col := range cols {
		sets = append(sets, col+" = ?")
	}
	where, whereArgs := condSQL(conds)
	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where)

	res, err := c.db.ExecContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return 0, &ConnectivityError{Op: "update", Table: table, Err: err}
	}
	return res.RowsAffected()
}

func (c *SQLiteClient) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	projection := "*"
	if len(q.Columns) > 0 {
		projection = strings.Join(q.Columns, ", ")
	}
	where, args := condSQL(q.Conds)
	query := fmt.Sprintf("SELECT %s FROM %s%s", projection, table, where)
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ConnectivityError{Op: "select", Table: table, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ConnectivityError{Op: "select", Table: table, Err: err}
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ConnectivityError{Op: "select", Table: table, Err: err}
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectivityError{Op: "select", Table: table, Err: err}
	}
	return out, nil
}

func (c *SQLiteClient) Delete(ctx context.Context, table string, conds []Cond) (int64, error) {
	where, args := condSQL(conds)
	query := fmt.Sprintf("DELETE FROM %s%s", table, where)

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &ConnectivityError{Op: "delete", Table: table, Err: err}
	}
	return res.RowsAffected()
}

func (c *SQLiteClient) Probe(ctx context.Context, table, column string) error {
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT 1", column, table)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return &SchemaError{Table: table, Err: err}
	}
	rows.Close()
	return nil
}

func (c *SQLiteClient) Close() error { return c.db.Close() }

// rowArgs flattens a Row into sorted columns and driver-ready arguments.
// Structured values are stored as JSON text.
func rowArgs(row Row) ([]string, []any, error) {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols))
	for _, col := range cols {
		arg, err := valueArg(row[col])
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", col, err)
		}
		args = append(args, arg)
	}
	return cols, args, nil
}

func valueArg(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, []byte:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unstorable value: %w", err)
		}
		return string(data), nil
	}
}

// condSQL renders conditions as a WHERE clause. JSON-path conditions use
// json_extract so metadata filters behave like the remote store's ->> form.
func condSQL(conds []Cond) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any
	for _, cond := range conds {
		col := cond.Column
		if cond.Path != "" {
			col = fmt.Sprintf("json_extract(%s, '$.%s')", cond.Column, cond.Path)
		}
		op := "="
		switch cond.Op {
		case "neq":
			op = "!="
		case "like":
			op = "LIKE"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", col, op))
		args = append(args, cond.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
