package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/logging"
	"github.com/spacebio/biorag/internal/server"
	"github.com/spacebio/biorag/internal/store"
)

// NewServeCmd constructs the `biorag serve` command, which starts the HTTP
// server exposing the retrieval engine as a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var rebuildOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the biorag HTTP server",
		Long: `Start the biorag HTTP server on localhost.

The server exposes /api/ask, /api/search, /api/rebuild, /api/stats,
/api/history, plus /api/health, /api/ready, and /metrics for operations.
On startup the persisted index is loaded; pass --rebuild to re-embed the
corpus from scratch instead.

Examples:
  biorag serve
  biorag serve --port 9090
  biorag serve --rebuild
  EMBEDDING_PROVIDER=openai biorag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			eng, syn, err := newEngine(log, engineConfigFromEnv(log))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer eng.Close()

			if rebuildOnStart {
				sum, err := eng.Build(ctx)
				if err != nil {
					return fmt.Errorf("serve: initial build failed: %w", err)
				}
				log.Info("initial build complete",
					slog.Int("loaded", sum.Loaded),
					slog.Int("skipped", sum.Skipped),
				)
			} else if err := eng.Open(); err != nil {
				// A server with no index is still useful: /api/rebuild can
				// populate it, and health endpoints report the state honestly.
				log.Warn("serve: no persisted index loaded — POST /api/rebuild to build one",
					slog.Any("error", err),
				)
			}
			syncCorpusSize(eng, syn)

			// Open question history store. BIORAG_HISTORY_DB overrides the
			// default path (~/.biorag/history.db). Set to "disabled" to disable.
			var historyStore store.HistoryStore
			dbPath := os.Getenv("BIORAG_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					var pathErr error
					dbPath, pathErr = store.DefaultDBPath()
					if pathErr != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", pathErr))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via BIORAG_HISTORY_DB=disabled")
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			srv, err := server.New(eng, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(),
				APIKey:  os.Getenv("BIORAG_API_KEY"),
				History: historyStore,
			}, reg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().BoolVar(&rebuildOnStart, "rebuild", false, "Re-embed the corpus on startup instead of loading artifacts")

	return cmd
}
