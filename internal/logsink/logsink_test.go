package logsink

import (
	"context"
	"testing"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/testutil"
)

func TestLog_WritesOnlySetFields(t *testing.T) {
	client := testutil.NewClient(t)
	sink := New(client, nil)
	ctx := context.Background()

	err := sink.Log(ctx, Entry{
		TaskName: "research",
		Agent:    "analyst",
		Status:   "completed",
		Message:  "task finished",
		Duration: 1.5,
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := client.Select(ctx, "logs", backing.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 log row, got %d", len(rows))
	}
	row := rows[0]
	if row["task_name"] != "research" || row["agent"] != "analyst" || row["status"] != "completed" {
		t.Errorf("row fields = %v", row)
	}
	if row["duration"] != 1.5 {
		t.Errorf("duration = %v", row["duration"])
	}
	if id, ok := row["id"].(string); !ok || id == "" {
		t.Errorf("id not generated: %v", row["id"])
	}
	// The store stamps the timestamp; the sink must not.
	if ts, ok := row["timestamp"].(string); !ok || ts == "" {
		t.Errorf("timestamp not server-stamped: %v", row["timestamp"])
	}
	// Unset fields stay NULL.
	if row["error"] != nil {
		t.Errorf("unset field written: %v", row["error"])
	}
}

func TestLog_MetadataEncoded(t *testing.T) {
	client := testutil.NewClient(t)
	sink := New(client, nil)
	ctx := context.Background()

	err := sink.Log(ctx, Entry{
		Message:  "with metadata",
		Metadata: map[string]any{"attempt": float64(2)},
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := client.Select(ctx, "logs", backing.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0]["metadata"] != `{"attempt":2}` {
		t.Errorf("metadata = %v", rows[0]["metadata"])
	}
}

func TestLog_UnencodableMetadataFails(t *testing.T) {
	sink := New(testutil.NewClient(t), nil)

	err := sink.Log(context.Background(), Entry{
		Message:  "bad",
		Metadata: map[string]any{"ch": make(chan int)},
	})
	if err == nil {
		t.Fatal("expected error for unencodable metadata")
	}
}

func TestLog_AppendOnly(t *testing.T) {
	client := testutil.NewClient(t)
	sink := New(client, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := sink.Log(ctx, Entry{Message: "event"}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := client.Select(ctx, "logs", backing.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 appended rows, got %d", len(rows))
	}
}
