package retrieval

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Searcher backed by a remote Qdrant collection.
// It is an opt-in alternative to FlatIndex for corpora too large to scan in
// memory. Qdrant's HNSW search is approximate: result ordering may differ
// from the exact flat baseline, so it is never selected silently — operators
// choose it explicitly via configuration.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig

	// count mirrors the server-side point count for Len and the alignment
	// check at retriever construction. Points are keyed by chunk ID and
	// overwrite on rebuild, so the server count is authoritative — it is
	// re-queried after every write, never incremented locally.
	count int
}

// NewQdrantIndex connects to Qdrant, ensures the target collection exists
// (creating it with cosine distance if necessary), and returns a ready index.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	x := &QdrantIndex{client: client, cfg: cfg}
	if err := x.ensureCollection(ctx); err != nil {
		return nil, err
	}

	count, err := client.Count(ctx, &qdrant.CountPoints{CollectionName: cfg.Collection})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to count collection %q: %w", cfg.Collection, err)
	}
	x.count = int(count)

	return x, nil
}

// ensureCollection creates the collection if it does not already exist.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     x.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", x.cfg.Collection, err)
	}
	return nil
}

// Upsert stores a batch of chunk embeddings. ids and embeddings must be
// parallel slices; each point is keyed by its chunk ID so rebuilds overwrite
// in place.
func (x *QdrantIndex) Upsert(ctx context.Context, ids []int, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("qdrant: %d ids but %d embeddings", len(ids), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(ids))
	for i, id := range ids {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(id)), //nolint:gosec // chunk IDs are non-negative
			Vectors: qdrant.NewVectors(embeddings[i]...),
		})
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	// A smaller corpus than the previous build leaves points behind past the
	// end of the new chunk store; searches would return their IDs and trip
	// the alignment check. Delete them before refreshing the count.
	maxID := -1
	for _, id := range ids {
		if id > maxID {
			maxID = id
		}
	}
	if stale := stalePointIDs(maxID, x.count); len(stale) > 0 {
		sel := make([]*qdrant.PointId, 0, len(stale))
		for _, id := range stale {
			sel = append(sel, qdrant.NewIDNum(id))
		}
		_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: x.cfg.Collection,
			Points:         qdrant.NewPointsSelector(sel...),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("qdrant: delete stale points: %w", err)
		}
	}

	count, err := x.client.Count(ctx, &qdrant.CountPoints{CollectionName: x.cfg.Collection})
	if err != nil {
		return fmt.Errorf("qdrant: failed to count collection %q: %w", x.cfg.Collection, err)
	}
	x.count = int(count)
	return nil
}

// stalePointIDs lists the point IDs left over from a previous, larger build.
// Chunk IDs are assigned positionally from zero, so every ID above the
// highest one just upserted and below the prior collection size is stale.
func stalePointIDs(maxID, existing int) []uint64 {
	if existing <= maxID+1 {
		return nil
	}
	stale := make([]uint64, 0, existing-maxID-1)
	for id := maxID + 1; id < existing; id++ {
		stale = append(stale, uint64(id)) //nolint:gosec // chunk IDs are non-negative
	}
	return stale
}

// Search performs a cosine similarity query and returns the top-k hits.
func (x *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	limit := uint64(k) //nolint:gosec // k is positive
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:    int(r.Id.GetNum()), //nolint:gosec // IDs were written as chunk IDs
			Score: r.Score,
		})
	}
	return hits, nil
}

// Len returns the number of vectors in the collection.
func (x *QdrantIndex) Len() int { return x.count }

// Ping checks that the Qdrant server is reachable. Used by readiness probes.
func (x *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := x.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

// Name returns the probe label for readiness responses.
func (x *QdrantIndex) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}
