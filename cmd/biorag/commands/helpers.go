package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spacebio/biorag/internal/corpus"
	"github.com/spacebio/biorag/internal/embedder"
	"github.com/spacebio/biorag/internal/engine"
	"github.com/spacebio/biorag/internal/retrieval"
	"github.com/spacebio/biorag/internal/server"
	"github.com/spacebio/biorag/internal/synth"
)

// engineConfigFromEnv assembles the engine configuration from environment
// variables. Flags on individual commands override specific fields afterwards.
func engineConfigFromEnv(log *slog.Logger) engine.Config {
	cfg := engine.Config{
		CorpusPath: os.Getenv("CORPUS_PATH"),
		Format:     corpus.Format(os.Getenv("CORPUS_FORMAT")),
		IndexDir:   getEnvOrDefault("INDEX_DIR", defaultIndexDir()),
		TopK:       getEnvInt("RETRIEVAL_TOP_K", 0),
		MinScore:   getEnvFloat("RETRIEVAL_MIN_SCORE", 0),
		MaxContext: getEnvInt("RETRIEVAL_MAX_CONTEXT", 0),
		Logger:     log,
	}

	// The Qdrant backend is opt-in: its HNSW search is approximate, so the
	// exact in-process flat index stays the default.
	if os.Getenv("VECTOR_BACKEND") == "qdrant" {
		cfg.Qdrant = &retrieval.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "biorag-chunks"),
			VectorSize: uint64(embedder.DefaultDimensions(embedder.Backend())), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}
	}

	return cfg
}

// newEngine constructs the embedder, synthesizer, and engine from the
// environment. The engine has no index yet — callers follow with Build or Open.
func newEngine(log *slog.Logger, cfg engine.Config) (*engine.Engine, synth.Synthesizer, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("model", emb.Model()))

	syn, err := synth.NewFromEnv(0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise synthesizer: %w", err)
	}

	eng, err := engine.New(emb, syn, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return eng, syn, nil
}

// syncCorpusSize propagates the loaded chunk count to the synthesizer's
// greeting. Harmless no-op for synthesizers that do not report corpus size.
func syncCorpusSize(eng *engine.Engine, syn synth.Synthesizer) {
	st, err := eng.Stats()
	if err != nil {
		return
	}
	if t, ok := syn.(*synth.TemplateSynthesizer); ok {
		t.SetCorpusSize(st.Corpus.TotalChunks)
	}
}

// buildPingers assembles the dependency probes for GET /api/ready. The
// embedding backend is probed when it can report reachability (Ollama checks
// its version endpoint); backends without a cheap probe are skipped.
func buildPingers() []server.Pinger {
	var pingers []server.Pinger
	if emb, err := embedder.NewFromEnv(); err == nil {
		if p, ok := emb.(server.Pinger); ok {
			pingers = append(pingers, p)
		}
	}
	return pingers
}

// defaultIndexDir returns ~/.biorag/index, or "" when the home directory
// cannot be resolved (persistence is then disabled).
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.biorag/index"
}

// getEnvOrDefault returns the env var value or fallback when unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat returns the env var parsed as float32, or fallback when unset
// or unparseable.
func getEnvFloat(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
