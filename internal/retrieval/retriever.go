package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spacebio/biorag/internal/corpus"
)

// Canonical retrieval defaults. Source variants of this system disagreed on
// these; the consolidated engine uses one set everywhere.
const (
	// DefaultTopK is the number of results returned when the caller does
	// not specify one.
	DefaultTopK = 5

	// DefaultMinScore is the minimum cosine similarity a result must reach
	// to be returned. Values at or below 0 disable thresholding and return
	// the raw top-k.
	DefaultMinScore = 0.3
)

// ErrEmptyQuery is returned when the query is empty after trimming. This is
// a caller error, distinct from the valid empty result set of a query that
// simply matches nothing.
var ErrEmptyQuery = errors.New("retrieval: query must not be empty")

// Retriever combines an Embedder, a Searcher, and the corpus store into the
// query-time retrieval operation: embed, search, threshold, rank.
// Safe for concurrent use once constructed.
type Retriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// searcher performs the similarity search.
	searcher Searcher

	// store resolves hit IDs back to chunks.
	store *corpus.Store

	// topK is the default result count for Retrieve.
	topK int

	// minScore is the default similarity threshold for Retrieve.
	minScore float32
}

// NewRetriever constructs a Retriever. topK <= 0 and minScore values are
// replaced with the package defaults.
func NewRetriever(embedder Embedder, searcher Searcher, store *corpus.Store, topK int, minScore float32) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("retrieval: searcher must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if searcher.Len() != store.Len() {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrMisaligned, store.Len(), searcher.Len())
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		store:    store,
		topK:     topK,
		minScore: minScore,
	}, nil
}

// Retrieve returns the ranked results for query using the configured
// defaults for top-k and minimum score.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]SearchResult, error) {
	return r.RetrieveN(ctx, query, r.topK, r.minScore)
}

// RetrieveN returns up to topK results for query with similarity at or above
// minScore, ranked 1..M in descending score order. topK is taken literally:
// 0 or negative returns no results. minScore <= 0 disables thresholding.
//
// An empty result set is a valid outcome, not an error: the query has no
// sufficiently similar content. For a fixed index and query the returned
// results and ordering are identical across calls.
func (r *Retriever) RetrieveN(ctx context.Context, query string, topK int, minScore float32) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("retrieval: embedder returned no vector for query")
	}

	hits, err := r.searcher.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if minScore > 0 && h.Score < minScore {
			continue
		}
		chunk, ok := r.store.Get(h.ID)
		if !ok {
			return nil, fmt.Errorf("%w: search returned chunk ID %d, corpus has %d chunks",
				ErrMisaligned, h.ID, r.store.Len())
		}
		results = append(results, SearchResult{
			Chunk: chunk,
			Score: h.Score,
			Rank:  len(results) + 1,
		})
	}

	return results, nil
}
