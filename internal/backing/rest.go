package backing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RESTClient talks to a remote PostgREST-dialect store (Supabase and
// compatible) over HTTP. One blocking request per call, no retries.
type RESTClient struct {
	endpoint   string
	credential string
	httpc      *http.Client
}

// NewRESTClient creates a client for the store at endpoint, authenticating
// every request with credential.
func NewRESTClient(endpoint, credential string) *RESTClient {
	return &RESTClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		credential: credential,
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RESTClient) Insert(ctx context.Context, table string, row Row) (int64, error) {
	rows, err := c.do(ctx, http.MethodPost, table, nil, row, "return=representation")
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (c *RESTClient) Upsert(ctx context.Context, table, conflictColumn string, row Row) (int64, error) {
	params := url.Values{}
	params.Set("on_conflict", conflictColumn)
	rows, err := c.do(ctx, http.MethodPost, table, params, row,
		"resolution=merge-duplicates,return=representation")
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (c *RESTClient) Update(ctx context.Context, table string, changes Row, conds []Cond) (int64, error) {
	params := url.Values{}
	addConds(params, conds)
	rows, err := c.do(ctx, http.MethodPatch, table, params, changes, "return=representation")
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (c *RESTClient) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	addConds(params, q.Conds)
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return c.do(ctx, http.MethodGet, table, params, nil, "")
}

func (c *RESTClient) Delete(ctx context.Context, table string, conds []Cond) (int64, error) {
	params := url.Values{}
	addConds(params, conds)
	rows, err := c.do(ctx, http.MethodDelete, table, params, nil, "return=representation")
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (c *RESTClient) Probe(ctx context.Context, table, column string) error {
	params := url.Values{}
	params.Set("select", column)
	params.Set("limit", "1")
	if _, err := c.do(ctx, http.MethodGet, table, params, nil, ""); err != nil {
		return &SchemaError{Table: table, Err: err}
	}
	return nil
}

func (c *RESTClient) Close() error { return nil }

// do performs one request against /rest/v1/<table> and decodes the JSON
// array response, if any.
func (c *RESTClient) do(ctx context.Context, method, table string, params url.Values, body any, prefer string) ([]Row, error) {
	u := c.endpoint + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body for %s: %w", table, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &ConnectivityError{Op: method, Table: table, Err: err}
	}
	req.Header.Set("apikey", c.credential)
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Op: method, Table: table, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Op: method, Table: table, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &ConnectivityError{Op: method, Table: table,
			Err: fmt.Errorf("authentication rejected (status %d)", resp.StatusCode)}
	}
	if resp.StatusCode >= 300 {
		return nil, &ConnectivityError{Op: method, Table: table,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data))}
	}

	if len(data) == 0 {
		return nil, nil
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		// Single-object responses come back without the array wrapper.
		var one Row
		if err2 := json.Unmarshal(data, &one); err2 == nil {
			return []Row{one}, nil
		}
		return nil, &ConnectivityError{Op: method, Table: table,
			Err: fmt.Errorf("unexpected response body: %w", err)}
	}
	return rows, nil
}

// addConds renders conditions as PostgREST query parameters,
// e.g. key=eq.foo, metadata->>agent=eq.a1, key=like.agent_*.
func addConds(params url.Values, conds []Cond) {
	for _, cond := range conds {
		col := cond.Column
		if cond.Path != "" {
			col = cond.Column + "->>" + cond.Path
		}
		val := fmt.Sprintf("%v", cond.Value)
		if cond.Op == "like" {
			// PostgREST uses * where SQL LIKE uses %.
			val = strings.ReplaceAll(val, "%", "*")
		}
		params.Add(col, cond.Op+"."+val)
	}
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
