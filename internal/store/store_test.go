package store

import (
	"context"
	"path/filepath"
	"testing"
)

// openTestStore creates a SQLiteStore backed by a temp-dir database file.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestAppendAndRecent verifies round-tripping entries through the store.
func TestAppendAndRecent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	e := Entry{
		Query:       "how does microgravity affect bone density?",
		Answer:      "Bone density decreases during spaceflight.",
		Sources:     3,
		TopScore:    0.82,
		Synthesizer: "template",
	}
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.Query != e.Query || got.Answer != e.Answer {
		t.Errorf("entry = %+v", got)
	}
	if got.Sources != 3 {
		t.Errorf("sources = %d, want 3", got.Sources)
	}
	if got.TopScore < 0.81 || got.TopScore > 0.83 {
		t.Errorf("top score = %v, want ~0.82", got.TopScore)
	}
	if got.Synthesizer != "template" {
		t.Errorf("synthesizer = %q", got.Synthesizer)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

// TestRecent_NewestFirst verifies Recent returns entries newest first and
// respects the limit. Entries inserted in the same second fall back to
// insertion-order (id) for the tie break.
func TestRecent_NewestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, Entry{Query: q, Answer: "a", Synthesizer: "template"}); err != nil {
			t.Fatalf("Append %q: %v", q, err)
		}
	}

	entries, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Query != "third" || entries[1].Query != "second" {
		t.Errorf("order = [%q, %q], want newest first", entries[0].Query, entries[1].Query)
	}
}

// TestRecent_Empty verifies querying an empty store is not an error.
func TestRecent_Empty(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	entries, err := s.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

// TestOpen_CreatesFile verifies Open creates the database file and the schema
// survives a close/reopen cycle.
func TestOpen_CreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append(ctx, Entry{Query: "q", Answer: "a", Synthesizer: "rules"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent after reopen: %v", err)
	}
	if len(entries) != 1 || entries[0].Query != "q" {
		t.Errorf("entries after reopen = %+v", entries)
	}
}
