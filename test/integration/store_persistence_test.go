//go:build integration

package integration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/crewstore/crewstore/internal/config"
	"github.com/crewstore/crewstore/internal/journal"
	"github.com/crewstore/crewstore/pkg/crewstore"
)

func TestPersistenceAcrossRuns(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "crewstore.db")
	cfg := &config.Config{Driver: "sqlite", Path: dbPath}

	// --- Run 1: write through every surface, close ---
	store1, err := crewstore.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := store1.Memory.Save(ctx, "agent_1_memory",
		map[string]any{"note": "architecture discussed"},
		map[string]any{"agent": "a1"}); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"t0", "t1"} {
		if err := store1.Journal.Add(ctx, journal.Record{
			TaskID:    id,
			TaskIndex: i,
			Output:    map[string]any{"summary": "output for " + id},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store1.Snapshots.Save(ctx, "t0", map[string]any{"step": float64(1)}); err != nil {
		t.Fatal(err)
	}
	store1.Close()

	// --- Run 2: fresh instance on the same file sees everything ---
	store2, err := crewstore.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()

	value, found, err := store2.Memory.Load(ctx, "agent_1_memory")
	if err != nil || !found {
		t.Fatalf("memory lost across runs: found=%v err=%v", found, err)
	}
	m, _ := value.(map[string]any)
	if m["note"] != "architecture discussed" {
		t.Errorf("memory value = %v", value)
	}

	records, err := store2.Journal.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].TaskID != "t0" || records[1].TaskID != "t1" {
		t.Errorf("journal across runs = %+v", records)
	}

	snaps, err := store2.Snapshots.Load(ctx, "t0")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Errorf("snapshots across runs = %+v", snaps)
	}

	// Replay: the second run overwrites rather than duplicates.
	if err := store2.Journal.Add(ctx, journal.Record{
		TaskID:      "t0",
		TaskIndex:   0,
		Output:      "replayed",
		WasReplayed: true,
	}); err != nil {
		t.Fatal(err)
	}
	records, err = store2.Journal.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || !records[0].WasReplayed {
		t.Errorf("replay duplicated or lost flag: %+v", records)
	}
}

func TestOpenFailsFastOnBadConfig(t *testing.T) {
	_, err := crewstore.Open(&config.Config{Driver: "rest", Endpoint: "https://x.example"})
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError before any store call, got %v", err)
	}
}
