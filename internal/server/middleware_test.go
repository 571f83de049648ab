package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spacebio/biorag/internal/logging"
)

// TestRequestLogger_SetsRequestIDHeader verifies that every response carries
// a unique X-Request-ID header matching the ID injected into the request
// context logger.
func TestRequestLogger_SetsRequestIDHeader(t *testing.T) {
	t.Parallel()

	h := requestLogger(slog.Default(), okHandler)

	seen := make(map[string]bool)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		id := w.Header().Get("X-Request-ID")
		if len(id) != 16 {
			t.Fatalf("request %d: expected 16-char hex request ID, got %q", i, id)
		}
		if seen[id] {
			t.Errorf("request %d: duplicate request ID %q", i, id)
		}
		seen[id] = true
	}
}

// TestRequestLogger_InjectsContextLogger verifies that the downstream handler
// sees a non-nil logger via logging.FromContext.
func TestRequestLogger_InjectsContextLogger(t *testing.T) {
	t.Parallel()

	var got *slog.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logging.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	h := requestLogger(slog.Default(), inner)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected a logger in the request context")
	}
}
