package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
corpus:
  path: /data/publications.jsonl
  format: jsonl
index:
  dir: /data/index
retrieval:
  top_k: 8
  min_score: 0.4
  max_context: 3000
embedding:
  provider: ollama
  model: all-minilm
qdrant:
  host: qdrant.internal
  port: 6334
  collection: biorag-chunks
synth:
  provider: template
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"CORPUS_PATH", "CORPUS_FORMAT", "INDEX_DIR",
		"RETRIEVAL_TOP_K", "RETRIEVAL_MIN_SCORE", "RETRIEVAL_MAX_CONTEXT",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"SYNTH_PROVIDER",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"CORPUS_PATH":           "/data/publications.jsonl",
		"CORPUS_FORMAT":         "jsonl",
		"INDEX_DIR":             "/data/index",
		"RETRIEVAL_TOP_K":       "8",
		"RETRIEVAL_MIN_SCORE":   "0.4",
		"RETRIEVAL_MAX_CONTEXT": "3000",
		"EMBEDDING_PROVIDER":    "ollama",
		"EMBEDDING_MODEL":       "all-minilm",
		"QDRANT_HOST":           "qdrant.internal",
		"QDRANT_PORT":           "6334",
		"QDRANT_COLLECTION":     "biorag-chunks",
		"SYNTH_PROVIDER":        "template",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("EMBEDDING_PROVIDER", "openai")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("EMBEDDING_PROVIDER"); got != "openai" {
		t.Errorf("EMBEDDING_PROVIDER: expected env override %q, got %q", "openai", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvPathSearch(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")

	if err := os.WriteFile(cfgPath, []byte("corpus:\n  format: csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BIORAG_CONFIG", cfgPath)
	t.Setenv("CORPUS_FORMAT", "")
	os.Unsetenv("CORPUS_FORMAT")

	log := slog.Default()
	loaded, err := Load("", log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("CORPUS_FORMAT"); got != "csv" {
		t.Errorf("CORPUS_FORMAT: got %q, want %q", got, "csv")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
