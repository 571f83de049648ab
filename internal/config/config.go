// Package config provides YAML-based configuration for biorag.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars. Environment variables always win, so env-only workflows are
// unaffected by adding a config file.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. BIORAG_CONFIG environment variable
//  3. ~/.biorag/config.yaml
//  4. ./biorag.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming.
type Config struct {
	// Corpus configures the source text collection.
	Corpus CorpusConfig `yaml:"corpus"`

	// Index configures index artifact persistence.
	Index IndexConfig `yaml:"index"`

	// Retrieval configures query-time defaults.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the optional remote vector backend.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Synth configures the answer synthesizer.
	Synth SynthConfig `yaml:"synth"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures question history persistence.
	History HistoryConfig `yaml:"history"`
}

// CorpusConfig holds corpus source settings.
type CorpusConfig struct {
	// Path is the corpus file (JSONL, JSON array, or CSV).
	Path string `yaml:"path"`
	// Format overrides format detection: jsonl, json, csv.
	Format string `yaml:"format"`
}

// IndexConfig holds index artifact settings.
type IndexConfig struct {
	// Dir is the directory for persisted index artifacts.
	Dir string `yaml:"dir"`
}

// RetrievalConfig holds query-time defaults.
type RetrievalConfig struct {
	// TopK is the default result count.
	TopK int `yaml:"top_k"`
	// MinScore is the default similarity threshold. Values at or below 0
	// disable thresholding.
	MinScore float32 `yaml:"min_score"`
	// MaxContext is the default context character budget.
	MaxContext int `yaml:"max_context"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the backend: ollama, openai, azure.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds settings for the opt-in Qdrant vector backend.
type QdrantConfig struct {
	// Backend set to "qdrant" selects Qdrant over the in-process flat index.
	Backend string `yaml:"backend"`
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// SynthConfig holds answer synthesizer settings.
type SynthConfig struct {
	// Provider selects the synthesizer: template, extractive, openai.
	Provider string `yaml:"provider"`
	// Model is the chat model for the openai synthesizer.
	Model string `yaml:"model"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var BIORAG_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds question history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"CORPUS_PATH", func(c *Config) string { return c.Corpus.Path }},
	{"CORPUS_FORMAT", func(c *Config) string { return c.Corpus.Format }},
	{"INDEX_DIR", func(c *Config) string { return c.Index.Dir }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVAL_MIN_SCORE", func(c *Config) string { return float32Str(c.Retrieval.MinScore) }},
	{"RETRIEVAL_MAX_CONTEXT", func(c *Config) string { return intStr(c.Retrieval.MaxContext) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.Qdrant.Backend }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"SYNTH_PROVIDER", func(c *Config) string { return c.Synth.Provider }},
	{"SYNTH_MODEL", func(c *Config) string { return c.Synth.Model }},
	{"BIORAG_HOST", func(c *Config) string { return c.Server.Host }},
	{"BIORAG_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"BIORAG_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"BIORAG_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("BIORAG_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".biorag", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("biorag.yaml"); err == nil {
		return "biorag.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
