// Package server implements the HTTP server that exposes the biorag
// retrieval engine via a REST API.
// The server is started by the `biorag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spacebio/biorag/internal/corpus"
	"github.com/spacebio/biorag/internal/engine"
	"github.com/spacebio/biorag/internal/logging"
	"github.com/spacebio/biorag/internal/retrieval"
	"github.com/spacebio/biorag/internal/store"
)

// Engine is the interface the server calls to answer requests.
// *engine.Engine satisfies it; tests inject a fake.
type Engine interface {
	// Search retrieves ranked chunks for a query.
	Search(ctx context.Context, query string, topK int, minScore float32) ([]retrieval.SearchResult, error)
	// Ask runs the full retrieve-assemble-synthesize pipeline.
	Ask(ctx context.Context, query string, topK int, minScore float32, maxContext int) (engine.Answer, error)
	// Build reloads the corpus and swaps in a fresh index.
	Build(ctx context.Context) (corpus.LoadSummary, error)
	// Stats describes the currently served index.
	Stats() (engine.Stats, error)
	// Ready reports whether an index is loaded.
	Ready() bool
}

// New constructs a Server from the provided engine and config.
// Metrics are registered against reg; pass a fresh prometheus.NewRegistry in
// tests to keep them hermetic.
func New(eng Engine, cfg *Config, reg *prometheus.Registry) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full corpus rebuild triggered via the API.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		engine:  eng,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
		history: cfg.History,
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: BIORAG_API_KEY not set — API authentication disabled")
	}

	// Query endpoints are rate limited and authenticated. Health, readiness,
	// and metrics stay open for probes and scrapers.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", protected("ask", s.handleAsk))
	mux.Handle("POST /api/search", protected("search", s.handleSearch))
	mux.Handle("POST /api/rebuild", protected("rebuild", s.handleRebuild))
	mux.Handle("GET /api/stats", protected("stats", s.handleStats))
	mux.Handle("GET /api/history", protected("history", s.handleHistory))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask: the full question-answering pipeline.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	ans, err := s.engine.Ask(r.Context(), req.Query, req.TopK, req.MinScore, req.MaxContext)
	elapsed := time.Since(start)
	if err != nil {
		outcome := outcomeLabel(err)
		s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
		writeEngineError(w, log, err)
		return
	}
	s.metrics.askRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.askDurationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())

	s.recordHistory(log, req.Query, ans)

	writeJSON(w, log, http.StatusOK, askResponse{
		Answer:      ans.Text,
		Sources:     newSourceRefs(ans.Sources),
		Results:     ans.Results,
		Synthesizer: ans.Synthesizer,
	})
}

// handleSearch handles POST /api/search: retrieval without synthesis.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	results, err := s.engine.Search(r.Context(), req.Query, req.TopK, req.MinScore)
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	if results == nil {
		results = []retrieval.SearchResult{}
	}

	writeJSON(w, log, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

// handleRebuild handles POST /api/rebuild: reload the corpus, re-embed, and
// atomically swap in the fresh index. A rebuild already in progress yields 409.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	start := time.Now()
	summary, err := s.engine.Build(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrRebuildRunning) {
			http.Error(w, "rebuild already in progress", http.StatusConflict)
			return
		}
		log.Error("rebuild failed", slog.Any("error", err))
		http.Error(w, "rebuild failed", http.StatusInternalServerError)
		return
	}
	elapsed := time.Since(start)

	s.metrics.rebuildsTotal.Inc()
	s.metrics.rebuildDurationSeconds.Observe(elapsed.Seconds())
	s.metrics.indexedChunks.Set(float64(summary.Loaded))

	writeJSON(w, log, http.StatusOK, rebuildResponse{
		Loaded:   summary.Loaded,
		Skipped:  summary.Skipped,
		Duration: elapsed.Round(time.Millisecond).String(),
	})
}

// handleStats handles GET /api/stats: corpus and index statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	st, err := s.engine.Stats()
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusOK, st)
}

// handleHistory handles GET /api/history: the most recent answered questions.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	entries, err := s.history.Recent(r.Context(), 20)
	if err != nil {
		log.Error("history query failed", slog.Any("error", err))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, log, http.StatusOK, entries)
}

// handleHealth handles GET /api/health for liveness checks. It reports the
// chunk count when an index is loaded so probes can see a non-empty index.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "index_loaded": s.engine.Ready()}
	if st, err := s.engine.Stats(); err == nil {
		resp["chunks"] = st.IndexSize
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// recordHistory appends an answered question to the history store, if enabled.
// Failures are logged, never surfaced to the client.
func (s *Server) recordHistory(log *slog.Logger, query string, ans engine.Answer) {
	if s.history == nil {
		return
	}
	e := store.Entry{
		Query:       query,
		Answer:      ans.Text,
		Sources:     len(ans.Sources),
		Synthesizer: ans.Synthesizer,
	}
	if len(ans.Results) > 0 {
		e.TopScore = ans.Results[0].Score
	}
	if err := s.history.Append(context.Background(), e); err != nil {
		log.Warn("history append failed", slog.Any("error", err))
	}
}

// outcomeLabel maps an engine error to a metric outcome label.
func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, engine.ErrNotReady):
		return "not_ready"
	default:
		return "error"
	}
}

// writeEngineError maps engine errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery):
		http.Error(w, "query is required", http.StatusBadRequest)
	case errors.Is(err, engine.ErrNotReady):
		http.Error(w, "no index loaded — run a rebuild first", http.StatusServiceUnavailable)
	default:
		log.Error("engine error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
