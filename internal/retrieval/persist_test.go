package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spacebio/biorag/internal/corpus"
)

// saveFixture builds a small index over the fixture corpus and persists it.
func saveFixture(t *testing.T, dir, model string) (*FlatIndex, *corpus.Store) {
	t.Helper()

	emb := newWordEmbedder()
	chunks := testCorpus()
	store := corpus.NewStore(chunks)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := emb.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	idx, _ := NewFlatIndex(len(vectors[0]))
	if err := idx.Add(vectors...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := Save(dir, model, idx, store); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return idx, store
}

// TestPersist_RoundTrip verifies a saved index reopens with identical search
// behavior and chunk content.
func TestPersist_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	orig, origStore := saveFixture(t, dir, "test/word-overlap")

	idx, store, err := Open(dir, "test/word-overlap")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if idx.Len() != orig.Len() || idx.Dimension() != orig.Dimension() {
		t.Errorf("reopened index shape %d×%d, want %d×%d",
			idx.Len(), idx.Dimension(), orig.Len(), orig.Dimension())
	}
	if store.Len() != origStore.Len() {
		t.Errorf("reopened store has %d chunks, want %d", store.Len(), origStore.Len())
	}

	// The reopened index must rank the same query identically.
	query, _ := newWordEmbedder().Embed(context.Background(), []string{"bone density loss"})
	origHits, _ := orig.Search(context.Background(), query[0], 3)
	newHits, err := idx.Search(context.Background(), query[0], 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := range origHits {
		if newHits[i].ID != origHits[i].ID {
			t.Errorf("hit %d: ID %d, want %d", i, newHits[i].ID, origHits[i].ID)
		}
	}

	c, ok := store.Get(0)
	if !ok || c.Metadata["section"] != "Results" {
		t.Errorf("reopened chunk 0 = %+v", c)
	}
}

// TestPersist_ModelMismatch verifies artifacts built with one model are
// refused under another — scores across models are not comparable.
func TestPersist_ModelMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	saveFixture(t, dir, "ollama/all-minilm")

	_, _, err := Open(dir, "openai/text-embedding-3-small@1536")
	if !errors.Is(err, ErrModelMismatch) {
		t.Errorf("err = %v, want ErrModelMismatch", err)
	}
}

// TestPersist_TruncatedMatrix verifies a short embeddings file is detected as
// misalignment rather than loaded partially.
func TestPersist_TruncatedMatrix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	saveFixture(t, dir, "test/word-overlap")

	path := filepath.Join(dir, "embeddings.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read matrix: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("truncate matrix: %v", err)
	}

	_, _, err = Open(dir, "test/word-overlap")
	if !errors.Is(err, ErrMisaligned) {
		t.Errorf("err = %v, want ErrMisaligned", err)
	}
}

// TestPersist_ChunkCountMismatch verifies a chunk list shorter than the
// manifest count is refused.
func TestPersist_ChunkCountMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	saveFixture(t, dir, "test/word-overlap")

	// Drop the chunk list down to a single entry.
	if err := os.WriteFile(filepath.Join(dir, "chunks.json"),
		[]byte(`[{"id":0,"text":"only one","metadata":{}}]`), 0o644); err != nil {
		t.Fatalf("rewrite chunks: %v", err)
	}

	_, _, err := Open(dir, "test/word-overlap")
	if !errors.Is(err, ErrMisaligned) {
		t.Errorf("err = %v, want ErrMisaligned", err)
	}
}

func TestPersist_MissingDir(t *testing.T) {
	t.Parallel()

	if _, _, err := Open(filepath.Join(t.TempDir(), "nope"), "m"); err == nil {
		t.Error("expected error for missing index directory")
	}
}

func TestSave_RejectsMisalignment(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]float32{1, 0})

	err := Save(t.TempDir(), "m", idx, corpus.NewStore(testCorpus()))
	if !errors.Is(err, ErrMisaligned) {
		t.Errorf("err = %v, want ErrMisaligned", err)
	}
}
