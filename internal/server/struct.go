package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spacebio/biorag/internal/corpus"
	"github.com/spacebio/biorag/internal/retrieval"
	"github.com/spacebio/biorag/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// History records answered questions when non-nil.
	History store.HistoryStore
}

// Server is the HTTP server that wraps the retrieval engine.
type Server struct {
	// engine answers all search and ask requests.
	engine Engine
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments for this server instance.
	metrics *serverMetrics
	// history records answered questions. Nil disables recording.
	history store.HistoryStore
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// TopK caps the number of retrieved chunks. Zero means the engine default.
	TopK int `json:"top_k,omitempty"`
	// MinScore is the similarity threshold. Zero means the engine default.
	MinScore float32 `json:"min_score,omitempty"`
	// MaxContext is the context character budget. Zero means the engine default.
	MaxContext int `json:"max_context,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`
	// Sources are the chunks the answer drew on.
	Sources []sourceRef `json:"sources"`
	// Results are the ranked retrieval results behind the answer.
	Results []retrieval.SearchResult `json:"results"`
	// Synthesizer identifies the synthesizer that produced the answer.
	Synthesizer string `json:"synthesizer"`
}

// sourceRef is a compact provenance record for one context chunk.
type sourceRef struct {
	// ID is the chunk identifier.
	ID int `json:"id"`
	// Source is the originating document label.
	Source string `json:"source"`
	// Section is the document section, if known.
	Section string `json:"section,omitempty"`
	// Title is the document title, if known.
	Title string `json:"title,omitempty"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the search query text.
	Query string `json:"query"`
	// TopK caps the number of results. Zero means the engine default.
	TopK int `json:"top_k,omitempty"`
	// MinScore is the similarity threshold. Zero means the engine default.
	MinScore float32 `json:"min_score,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Query echoes the search query.
	Query string `json:"query"`
	// Results are the ranked matches.
	Results []retrieval.SearchResult `json:"results"`
}

// rebuildResponse is the JSON response for POST /api/rebuild.
type rebuildResponse struct {
	// Loaded is the number of chunks indexed.
	Loaded int `json:"loaded"`
	// Skipped is the number of malformed or unusable records dropped.
	Skipped int `json:"skipped"`
	// Duration is the human-readable wall-clock rebuild time.
	Duration string `json:"duration"`
}

// newSourceRefs converts context chunks into compact provenance records.
func newSourceRefs(chunks []corpus.Chunk) []sourceRef {
	refs := make([]sourceRef, 0, len(chunks))
	for _, c := range chunks {
		refs = append(refs, sourceRef{
			ID:      c.ID,
			Source:  c.Source(),
			Section: c.Section(),
			Title:   c.Metadata["title"],
		})
	}
	return refs
}
