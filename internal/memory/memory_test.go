package memory

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/event"
	"github.com/crewstore/crewstore/internal/testutil"
)

func newStore(t *testing.T) (*Store, backing.Client) {
	t.Helper()
	client := testutil.NewClient(t)
	return New(client, nil, nil), client
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	value := map[string]any{"conversation": "user asked about weather", "turns": float64(3)}
	if err := s.Save(ctx, "agent_memory_001", value, nil); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Load(ctx, "agent_memory_001")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected key to exist")
	}
	if !reflect.DeepEqual(got, value) {
		t.Errorf("round trip = %v, want %v", got, value)
	}
}

func TestSaveLoad_OpaqueStringStaysRaw(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "note", "just a plain sentence", nil); err != nil {
		t.Fatal(err)
	}
	got, found, err := s.Load(ctx, "note")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got != "just a plain sentence" {
		t.Errorf("opaque value mangled: %v", got)
	}
}

func TestSave_UnencodableFails(t *testing.T) {
	s, _ := newStore(t)

	err := s.Save(context.Background(), "bad", map[string]any{"ch": make(chan int)}, nil)
	if err == nil {
		t.Fatal("expected error for unencodable value")
	}
}

func TestSave_UpsertsByKey(t *testing.T) {
	s, client := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "k", map[string]any{"v": float64(1)}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "k", map[string]any{"v": float64(2)}, nil); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]any{"v": float64(2)}) {
		t.Errorf("latest value not returned: %v", got)
	}

	rows, err := client.Select(ctx, "memory", backing.Query{Conds: []backing.Cond{backing.Eq("key", "k")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row for key, got %d", len(rows))
	}
	if rows[0]["created_at"] == nil || rows[0]["created_at"] == "" {
		t.Error("created_at not stamped on insert")
	}
}

func TestLoad_MissingKeyIsNotAnError(t *testing.T) {
	s, _ := newStore(t)

	value, found, err := s.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("absence must not error: %v", err)
	}
	if found || value != nil {
		t.Errorf("expected not-found, got found=%v value=%v", found, value)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "k", "v", nil); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.Delete(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Error("expected true for existing key")
	}

	deleted, err = s.Delete(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("expected false for repeated delete")
	}

	deleted, err = s.Delete(ctx, "absent")
	if err != nil || deleted {
		t.Errorf("absent key: deleted=%v err=%v", deleted, err)
	}
}

func TestSearch_MetadataPredicate(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "agent_1_memory", map[string]any{"note": "x"}, map[string]any{"agent": "a1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "agent_2_memory", map[string]any{"note": "y"}, map[string]any{"agent": "a2"}); err != nil {
		t.Fatal(err)
	}

	records, err := s.Search(ctx, map[string]any{"metadata": map[string]any{"agent": "a1"}}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 match, got %d", len(records))
	}
	if records[0].Key != "agent_1_memory" {
		t.Errorf("matched key = %q", records[0].Key)
	}
	if !reflect.DeepEqual(records[0].Value, map[string]any{"note": "x"}) {
		t.Errorf("record value = %v", records[0].Value)
	}

	records, err = s.Search(ctx, map[string]any{"metadata": map[string]any{"agent": "a3"}}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected no matches, got %d", len(records))
	}
}

func TestSearch_FieldEqualityAndLimit(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, key, "same", nil); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.Search(ctx, map[string]any{"key": "b"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Key != "b" {
		t.Errorf("field equality search = %v", records)
	}

	records, err = s.Search(ctx, map[string]any{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("limit not applied: %d results", len(records))
	}
}

func TestListKeys_Prefix(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for _, key := range []string{"agent_1", "agent_2", "crew_1"} {
		if err := s.Save(ctx, key, "v", nil); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.ListKeys(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}

	keys, err = s.ListKeys(ctx, "agent_")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"agent_1", "agent_2"}) {
		t.Errorf("prefix keys = %v", keys)
	}
}

func TestClear_WipesEverything(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	s.Save(ctx, "a", "v", nil)
	s.Save(ctx, "b", "v", nil)

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	keys, err := s.ListKeys(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("keys remain after clear: %v", keys)
	}
}

func TestSave_EmitsLifecycleEvents(t *testing.T) {
	client := testutil.NewClient(t)
	bus, rec := testutil.NewRecordingBus()
	s := New(client, bus, nil)

	if err := s.Save(context.Background(), "k", "v", nil); err != nil {
		t.Fatal(err)
	}

	types := rec.Types()
	want := []event.Type{event.MemorySaveStarted, event.MemorySaveCompleted}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestSave_FailingBlockingHookDoesNotFailSave(t *testing.T) {
	client := testutil.NewClient(t)
	bus := event.NewBus(nil)
	bus.Register(event.NewFuncHook("veto", nil, true, func(ev event.Event) error {
		return errors.New("hook refused")
	}))
	s := New(client, bus, nil)
	ctx := context.Background()

	if err := s.Save(ctx, "k", "v", nil); err != nil {
		t.Fatalf("hook failure leaked into save: %v", err)
	}
	_, found, err := s.Load(ctx, "k")
	if err != nil || !found {
		t.Errorf("value not persisted: found=%v err=%v", found, err)
	}
}

func TestSearch_EmitsFailureEvent(t *testing.T) {
	client := testutil.NewClient(t)
	bus, rec := testutil.NewRecordingBus()
	s := New(client, bus, nil)

	_, err := s.Search(context.Background(), map[string]any{"metadata": "not-a-map"}, 10)
	if err == nil {
		t.Fatal("expected error for malformed predicate")
	}

	types := rec.Types()
	if len(types) != 2 || types[1] != event.MemoryQueryFailed {
		t.Errorf("events = %v", types)
	}
}
