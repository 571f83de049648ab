// Package retrieval implements the query-time core of the engine: dense
// vector similarity search over the corpus and threshold-ranked retrieval.
// The Embedder and Searcher interfaces keep the retriever independent of a
// specific embedding backend or index implementation; the exact FlatIndex is
// the default Searcher and the only one with a guaranteed result ordering.
package retrieval

import (
	"context"

	"github.com/spacebio/biorag/internal/corpus"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines, and must be
// deterministic: the same text and model version always produce the same
// vector (within floating-point tolerance).
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice. An empty input
	// string yields a degenerate vector, not an error.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the model version identifier. Persisted index artifacts
	// are keyed to this value and refuse to load under a different one.
	Model() string
}

// Hit is one raw index match: a chunk ID and its similarity score.
type Hit struct {
	// ID is the chunk ID of the matched vector.
	ID int
	// Score is the inner-product similarity in [-1, 1] over unit vectors.
	Score float32
}

// Searcher performs k-nearest-neighbor lookup over the indexed embeddings.
// Implementations must be safe for concurrent readers once built.
type Searcher interface {
	// Search returns the k hits most similar to query, sorted descending by
	// score with ties broken by lower chunk ID. k greater than the index
	// size returns all hits; k <= 0 returns none.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len returns the number of indexed vectors.
	Len() int
}

// SearchResult is one ranked retrieval result. Results are created fresh for
// every query and never persisted; Chunk is a read-only view into the store.
type SearchResult struct {
	// Chunk is the matched corpus chunk.
	Chunk corpus.Chunk `json:"chunk"`

	// Score is the similarity score, higher is more relevant.
	Score float32 `json:"score"`

	// Rank is the 1-based position in this query's result list,
	// contiguous from 1 with no gaps.
	Rank int `json:"rank"`
}
