package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleEntries(base time.Time) []Entry {
	return []Entry{
		{ID: "e1", Timestamp: base, Actor: "op1", Action: "propose", IndentID: "IN001", Location: "Kalyan Yard", Summary: "proposed 9 x BOXN"},
		{ID: "e2", Timestamp: base.Add(time.Minute), Actor: "op1", Action: "confirm", IndentID: "IN001", Location: "Kalyan Yard", Summary: "confirmed 9 x BOXN"},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), Actor: "op2", Action: "propose", IndentID: "IN002", Location: "Tughlakabad", Summary: "proposed 4 x BCNA"},
	}
}

func runStoreTests(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)
	for _, e := range sampleEntries(base) {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Action != "propose" || all[1].Action != "confirm" {
		t.Errorf("entries must come back in append order")
	}

	byIndent, err := store.Query(ctx, Query{IndentID: "IN001"})
	if err != nil {
		t.Fatalf("query by indent: %v", err)
	}
	if len(byIndent) != 2 {
		t.Fatalf("expected 2 entries for IN001, got %d", len(byIndent))
	}

	byActor, err := store.Query(ctx, Query{Actor: "op2"})
	if err != nil {
		t.Fatalf("query by actor: %v", err)
	}
	if len(byActor) != 1 || byActor[0].IndentID != "IN002" {
		t.Fatalf("unexpected result for op2: %+v", byActor)
	}

	since, err := store.Query(ctx, Query{Since: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("query since: %v", err)
	}
	if len(since) != 1 || since[0].ID != "e3" {
		t.Fatalf("unexpected since result: %+v", since)
	}

	until, err := store.Query(ctx, Query{Until: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("query until: %v", err)
	}
	if len(until) != 1 || until[0].ID != "e1" {
		t.Fatalf("unexpected until result: %+v", until)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}

func TestJSONLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}

func TestJSONLStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e := Entry{ID: "e1", Timestamp: time.Now(), Actor: "op1", Action: "propose", IndentID: "IN001", Summary: "proposed"}
	if err := store.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("entry lost across reopen: %+v", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}
