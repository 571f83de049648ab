// Package engine owns the process-wide retrieval state: the corpus store,
// the vector index, and the retriever over them. The three are bundled into
// an immutable snapshot held behind an atomic pointer — queries always see a
// complete, consistent index, and a rebuild prepares a whole new snapshot
// before swapping it in. Nothing outside this package holds a mutable
// reference into the corpus or the index.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spacebio/biorag/internal/assemble"
	"github.com/spacebio/biorag/internal/corpus"
	"github.com/spacebio/biorag/internal/retrieval"
	"github.com/spacebio/biorag/internal/synth"
)

// embedBatchSize is the number of chunk texts sent to the embedder per call
// during an index build.
const embedBatchSize = 32

// ErrNotReady is returned by query operations before an index has been built
// or loaded. The hosting layer maps it to "service unavailable".
var ErrNotReady = errors.New("engine: no index loaded")

// ErrRebuildRunning is returned when a rebuild is requested while another is
// already in progress. Rebuilds never run in parallel.
var ErrRebuildRunning = errors.New("engine: a rebuild is already in progress")

// Config holds the engine configuration resolved at startup.
type Config struct {
	// CorpusPath is the corpus source file. Required for Build.
	CorpusPath string

	// Format is the corpus file format. Detected from the path when empty.
	Format corpus.Format

	// IndexDir is the directory for persisted index artifacts. When set,
	// Build saves there and Open loads from there.
	IndexDir string

	// TopK is the default result count for queries (default 5).
	TopK int

	// MinScore is the default similarity threshold (default 0.3; values at
	// or below 0 disable thresholding).
	MinScore float32

	// MaxContext is the default context character budget (default 2000).
	MaxContext int

	// Qdrant selects the remote Qdrant backend instead of the in-process
	// flat index. Nil means flat (the default, exact-ordering baseline).
	Qdrant *retrieval.QdrantConfig

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// snapshot bundles one consistent corpus/index/retriever generation.
type snapshot struct {
	store     *corpus.Store
	searcher  retrieval.Searcher
	retriever *retrieval.Retriever
	// flat is non-nil when searcher is the in-process flat index; used for
	// persistence and dimension reporting.
	flat *retrieval.FlatIndex
}

// Engine is the retrieval engine. Construct with New, populate with Build or
// Open, and share freely: all query operations are safe for concurrent use.
type Engine struct {
	// embedder is the process-wide embedding model client, loaded once.
	embedder retrieval.Embedder

	// synthesizer phrases final answers for Ask.
	synthesizer synth.Synthesizer

	// cfg holds the resolved configuration.
	cfg Config

	// snap is the current snapshot; nil until Build or Open succeeds.
	snap atomic.Pointer[snapshot]

	// rebuildMu serializes Build/Rebuild. TryLock rejects overlap.
	rebuildMu sync.Mutex

	// log is the structured logger.
	log *slog.Logger
}

// New constructs an Engine around the given embedder and synthesizer.
// No index exists yet; call Build or Open before serving queries.
func New(embedder retrieval.Embedder, synthesizer synth.Synthesizer, cfg Config) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("engine: embedder must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = retrieval.DefaultMinScore
	}
	if cfg.MaxContext <= 0 {
		cfg.MaxContext = assemble.DefaultMaxLength
	}
	if cfg.Format == "" && cfg.CorpusPath != "" {
		cfg.Format = corpus.DetectFormat(cfg.CorpusPath)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		embedder:    embedder,
		synthesizer: synthesizer,
		cfg:         cfg,
		log:         log,
	}, nil
}

// Ready reports whether an index is loaded and queries can be served.
func (e *Engine) Ready() bool { return e.snap.Load() != nil }

// Build loads the corpus, embeds every chunk, constructs a fresh index, and
// atomically swaps it in. In-flight queries keep reading the previous
// snapshot until the swap. When IndexDir is configured and the flat backend
// is in use, the new artifacts are persisted before the swap.
//
// A Build while another Build is running is rejected with ErrRebuildRunning.
func (e *Engine) Build(ctx context.Context) (corpus.LoadSummary, error) {
	if !e.rebuildMu.TryLock() {
		return corpus.LoadSummary{}, ErrRebuildRunning
	}
	defer e.rebuildMu.Unlock()

	store, sum, err := corpus.Load(e.cfg.CorpusPath, e.cfg.Format, e.log)
	if err != nil {
		return corpus.LoadSummary{}, err
	}

	snap, err := e.buildSnapshot(ctx, store)
	if err != nil {
		return corpus.LoadSummary{}, err
	}

	if e.cfg.IndexDir != "" && snap.flat != nil {
		if err := retrieval.Save(e.cfg.IndexDir, e.embedder.Model(), snap.flat, store); err != nil {
			return corpus.LoadSummary{}, err
		}
		e.log.Info("index artifacts saved",
			slog.String("dir", e.cfg.IndexDir),
			slog.String("model", e.embedder.Model()),
		)
	}

	e.swapSnapshot(snap)
	e.log.Info("index ready",
		slog.Int("chunks", store.Len()),
		slog.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// buildSnapshot embeds all chunks and assembles a complete snapshot without
// touching the currently served one.
func (e *Engine) buildSnapshot(ctx context.Context, store *corpus.Store) (*snapshot, error) {
	chunks := store.Chunks()

	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("engine: embedding chunks %d..%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("engine: embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		embeddings = append(embeddings, batch...)

		e.log.Debug("embedded batch", slog.Int("done", end), slog.Int("total", len(chunks)))
	}

	var searcher retrieval.Searcher
	var flat *retrieval.FlatIndex

	if e.cfg.Qdrant != nil {
		// The remote collection is shared state across rebuilds, so the live
		// connection is reused: a fresh client per build would leave the old
		// gRPC connection open with nothing to close it.
		var qx *retrieval.QdrantIndex
		if cur := e.snap.Load(); cur != nil {
			qx, _ = cur.searcher.(*retrieval.QdrantIndex)
		}
		if qx == nil {
			var err error
			qx, err = retrieval.NewQdrantIndex(ctx, e.cfg.Qdrant)
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}
		}
		ids := make([]int, len(chunks))
		for i := range chunks {
			ids[i] = chunks[i].ID
		}
		if err := qx.Upsert(ctx, ids, embeddings); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		searcher = qx
	} else {
		dim := 0
		if len(embeddings) > 0 {
			dim = len(embeddings[0])
		}
		if dim == 0 {
			// Empty corpus: an index with nothing in it is still a valid,
			// servable state — every search returns no results.
			dim = 1
		}
		fx, err := retrieval.NewFlatIndex(dim)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		if err := fx.Add(embeddings...); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		searcher = fx
		flat = fx
	}

	retriever, err := retrieval.NewRetriever(e.embedder, searcher, store, e.cfg.TopK, e.cfg.MinScore)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &snapshot{store: store, searcher: searcher, retriever: retriever, flat: flat}, nil
}

// Open loads persisted index artifacts from IndexDir and swaps them in,
// skipping the embedding pass entirely. Artifacts built with a different
// embedding model or dimension fail with retrieval.ErrModelMismatch, and
// misaligned artifacts with retrieval.ErrMisaligned — both fatal.
func (e *Engine) Open() error {
	if e.cfg.IndexDir == "" {
		return fmt.Errorf("engine: no index directory configured")
	}

	idx, store, err := retrieval.Open(e.cfg.IndexDir, e.embedder.Model())
	if err != nil {
		return err
	}

	retriever, err := retrieval.NewRetriever(e.embedder, idx, store, e.cfg.TopK, e.cfg.MinScore)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	e.swapSnapshot(&snapshot{store: store, searcher: idx, retriever: retriever, flat: idx})
	e.log.Info("index loaded",
		slog.String("dir", e.cfg.IndexDir),
		slog.Int("chunks", store.Len()),
		slog.Int("dimension", idx.Dimension()),
	)
	return nil
}

// Search returns ranked results for query. topK <= 0 and minScore == 0 fall
// back to the configured defaults; pass a negative minScore to disable
// thresholding entirely.
func (e *Engine) Search(ctx context.Context, query string, topK int, minScore float32) ([]retrieval.SearchResult, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	if minScore == 0 {
		minScore = e.cfg.MinScore
	}
	return snap.retriever.RetrieveN(ctx, query, topK, minScore)
}

// AssembleContext packs results into a bounded context window.
// maxLength <= 0 falls back to the configured default.
func (e *Engine) AssembleContext(results []retrieval.SearchResult, maxLength int) assemble.Context {
	if maxLength <= 0 {
		maxLength = e.cfg.MaxContext
	}
	return assemble.Assemble(results, maxLength)
}

// Answer is the complete outcome of one Ask: the synthesized response plus
// the retrieval evidence behind it.
type Answer struct {
	// Text is the synthesized user-facing answer.
	Text string

	// Results are the ranked retrieval results the answer drew on.
	Results []retrieval.SearchResult

	// Sources are the chunks that made it into the context window.
	Sources []corpus.Chunk

	// Synthesizer is the label of the synthesizer that produced Text.
	Synthesizer string
}

// Ask runs the full pipeline: retrieve, assemble context, synthesize.
// Defaults apply for topK, minScore, and maxContext as in Search and
// AssembleContext. An answer with no sources is a normal outcome, not an
// error — the synthesizer produces the "nothing found" phrasing.
func (e *Engine) Ask(ctx context.Context, query string, topK int, minScore float32, maxContext int) (Answer, error) {
	results, err := e.Search(ctx, query, topK, minScore)
	if err != nil {
		return Answer{}, err
	}

	win := e.AssembleContext(results, maxContext)

	text, err := e.synthesizer.Synthesize(ctx, query, win)
	if err != nil {
		return Answer{}, fmt.Errorf("engine: synthesize: %w", err)
	}

	return Answer{
		Text:        text,
		Results:     results,
		Sources:     win.Used,
		Synthesizer: e.synthesizer.Name(),
	}, nil
}

// Stats describes the currently served snapshot.
type Stats struct {
	// Corpus summarizes the chunk collection.
	Corpus corpus.Stats `json:"corpus"`
	// IndexSize is the number of indexed vectors.
	IndexSize int `json:"index_size"`
	// Dimension is the embedding dimensionality (0 for remote backends).
	Dimension int `json:"dimension"`
	// Model is the embedding model version behind the index.
	Model string `json:"model"`
}

// Stats returns statistics for the current snapshot, or ErrNotReady before
// one exists.
func (e *Engine) Stats() (Stats, error) {
	snap := e.snap.Load()
	if snap == nil {
		return Stats{}, ErrNotReady
	}
	st := Stats{
		Corpus:    snap.store.Stats(),
		IndexSize: snap.searcher.Len(),
		Model:     e.embedder.Model(),
	}
	if snap.flat != nil {
		st.Dimension = snap.flat.Dimension()
	}
	return st, nil
}

// swapSnapshot installs next as the served snapshot and closes the backend
// connection of the one it displaces, unless the two share it.
func (e *Engine) swapSnapshot(next *snapshot) {
	prev := e.snap.Swap(next)
	if prev == nil || prev.searcher == next.searcher {
		return
	}
	if closer, ok := prev.searcher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			e.log.Warn("closing displaced index backend", slog.Any("error", err))
		}
	}
}

// Close releases backend resources held by the current snapshot.
func (e *Engine) Close() error {
	snap := e.snap.Load()
	if snap == nil {
		return nil
	}
	if closer, ok := snap.searcher.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
