package retrieval

import (
	"context"
	"math"
	"testing"
)

func TestFlatIndex_RejectsBadDimension(t *testing.T) {
	t.Parallel()

	if _, err := NewFlatIndex(0); err == nil {
		t.Error("expected error for dimension 0")
	}
	if _, err := NewFlatIndex(-3); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestFlatIndex_AddRejectsWrongDimension(t *testing.T) {
	t.Parallel()

	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	if err := idx.Add([]float32{1, 0}); err == nil {
		t.Error("expected error for wrong-dimension vector")
	}
}

// TestFlatIndex_SearchOrdering verifies exact descending-score ordering and
// that the best match for a vector is the vector itself (cosine 1.0).
func TestFlatIndex_SearchOrdering(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(2)
	if err := idx.Add(
		[]float32{1, 0},
		[]float32{0, 1},
		[]float32{1, 1},
	); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if hits[0].ID != 0 {
		t.Errorf("best hit ID = %d, want 0 (the query vector itself)", hits[0].ID)
	}
	if math.Abs(float64(hits[0].Score)-1.0) > 1e-6 {
		t.Errorf("self-similarity = %f, want 1.0", hits[0].Score)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits not in descending score order: %v", hits)
		}
	}
}

// TestFlatIndex_TieBreakByID verifies that equal scores are ordered by lower
// chunk ID, making result order fully deterministic.
func TestFlatIndex_TieBreakByID(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(2)
	// Two identical vectors tie exactly; a third is orthogonal.
	if err := idx.Add(
		[]float32{0, 1},
		[]float32{3, 0},
		[]float32{7, 0}, // same direction as ID 1 after normalization
	); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].ID != 1 || hits[1].ID != 2 {
		t.Errorf("tied hits ordered %d, %d — want lower ID first", hits[0].ID, hits[1].ID)
	}
}

func TestFlatIndex_KBounds(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]float32{1, 0}, []float32{0, 1})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 100)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("k over index size returned %d hits, want 2", len(hits))
	}

	hits, err = idx.Search(context.Background(), []float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("Search k=0: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("k=0 returned %d hits, want 0", len(hits))
	}
}

// TestFlatIndex_EmptyIndex verifies searching an empty index returns no hits
// and no error, even when the query dimension differs from the index's.
func TestFlatIndex_EmptyIndex(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(1)
	hits, err := idx.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty index returned %d hits", len(hits))
	}
}

// TestFlatIndex_ZeroVector verifies the degenerate all-zero embedding scores
// 0 against everything instead of producing NaN.
func TestFlatIndex_ZeroVector(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(2)
	_ = idx.Add([]float32{0, 0}, []float32{1, 0})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if math.IsNaN(float64(h.Score)) {
			t.Errorf("hit %d has NaN score", h.ID)
		}
	}
	if hits[0].ID != 1 {
		t.Errorf("best hit = %d, want the non-zero vector", hits[0].ID)
	}

	// Zero query likewise: all scores 0, ordering falls back to chunk ID.
	hits, err = idx.Search(context.Background(), []float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Search zero query: %v", err)
	}
	if hits[0].ID != 0 || hits[1].ID != 1 {
		t.Errorf("zero-query ordering = %v, want ID order", hits)
	}
}

// TestFlatIndex_Deterministic verifies repeated searches return identical
// results for a fixed index and query.
func TestFlatIndex_Deterministic(t *testing.T) {
	t.Parallel()

	idx, _ := NewFlatIndex(3)
	_ = idx.Add(
		[]float32{0.2, 0.5, 0.1},
		[]float32{0.9, 0.1, 0.4},
		[]float32{0.3, 0.3, 0.3},
		[]float32{0.1, 0.8, 0.2},
	)

	first, err := idx.Search(context.Background(), []float32{0.5, 0.5, 0.5}, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for range 10 {
		again, err := idx.Search(context.Background(), []float32{0.5, 0.5, 0.5}, 4)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("non-deterministic results: %v vs %v", first, again)
			}
		}
	}
}
