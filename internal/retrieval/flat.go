package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// FlatIndex is an exact brute-force inner-product index. Vectors are
// L2-normalized on insert so the inner product equals cosine similarity.
// For this system's corpus sizes (10³–10⁵ chunks) a linear scan completes
// well inside interactive latency budgets, and unlike approximate structures
// its result ordering is exactly reproducible.
//
// A FlatIndex is append-only during build and read-only afterwards; concurrent
// Search calls are safe once building is done.
type FlatIndex struct {
	// dim is the embedding dimensionality, fixed at construction.
	dim int

	// vectors holds one unit-normalized embedding per chunk, positionally
	// aligned with the corpus: vectors[i] belongs to chunk ID i.
	vectors [][]float32
}

// NewFlatIndex constructs an empty FlatIndex for vectors of the given
// dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("retrieval: index dimension must be positive, got %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Dimension returns the embedding dimensionality of this index.
func (x *FlatIndex) Dimension() int { return x.dim }

// Len returns the number of indexed vectors.
func (x *FlatIndex) Len() int { return len(x.vectors) }

// Add appends embeddings to the index in chunk-ID order. Each vector is
// copied and unit-normalized; the caller's slices are not retained.
// A vector of the wrong dimension fails the whole batch.
func (x *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("retrieval: vector %d has dimension %d, index expects %d", i, len(v), x.dim)
		}
		x.vectors = append(x.vectors, normalize(v))
	}
	return nil
}

// Search scans all indexed vectors and returns the k highest-scoring hits,
// sorted descending by score with ties broken by lower chunk ID. k greater
// than the index size returns all hits; k <= 0 returns none.
func (x *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("retrieval: query has dimension %d, index expects %d", len(query), x.dim)
	}

	q := normalize(query)

	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = Hit{ID: i, Score: dot(q, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// normalize returns a unit-length copy of v. A zero vector (the degenerate
// embedding of empty text) is returned as a zero copy: it scores 0 against
// everything rather than producing NaNs.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sq float64
	for _, f := range v {
		sq += float64(f) * float64(f)
	}
	if sq == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sq))
	for i, f := range v {
		out[i] = f * inv
	}
	return out
}
