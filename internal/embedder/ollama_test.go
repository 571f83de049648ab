package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newFakeOllama starts an httptest server that answers /api/embed with the
// given embeddings and /api/version with 200 OK.
func newFakeOllama(t *testing.T, embeddings [][]float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req ollamaEmbedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
		case "/api/version":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestOllamaEmbed verifies the request/response round trip against a fake
// Ollama server.
func TestOllamaEmbed(t *testing.T) {
	t.Parallel()

	want := [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}
	srv := newFakeOllama(t, want)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})

	got, err := emb.Embed(context.Background(), []string{"bone density", "plant growth"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(got))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("embedding[%d][%d] = %v, want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

// TestOllamaEmbed_CountMismatch verifies a response with the wrong number of
// embeddings is rejected rather than silently misaligning chunks and vectors.
func TestOllamaEmbed_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := newFakeOllama(t, [][]float32{{0.1}})
	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})

	_, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}

// TestOllamaEmbed_ServerError verifies the error message from the Ollama
// response body is surfaced.
func TestOllamaEmbed_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: `model "missing" not found`})
	}))
	t.Cleanup(srv.Close)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	_, err := emb.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
}

// TestOllamaModel verifies the model identifier is namespaced by backend so
// index artifacts built by different providers never collide.
func TestOllamaModel(t *testing.T) {
	t.Parallel()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: "http://localhost:11434", Model: "all-minilm"})
	if got := emb.Model(); got != "ollama/all-minilm" {
		t.Errorf("Model() = %q, want %q", got, "ollama/all-minilm")
	}
}

// TestOllamaPing verifies the readiness probe against reachable and
// unreachable servers.
func TestOllamaPing(t *testing.T) {
	t.Parallel()

	srv := newFakeOllama(t, nil)
	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})
	if err := emb.Ping(context.Background()); err != nil {
		t.Errorf("Ping against live server: %v", err)
	}

	down := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "all-minilm"})
	if err := down.Ping(context.Background()); err == nil {
		t.Error("expected Ping error against unreachable server")
	}
}
