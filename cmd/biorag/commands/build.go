package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/corpus"
	"github.com/spacebio/biorag/internal/logging"
)

// NewBuildCmd constructs the `biorag build` command, which loads the corpus,
// embeds every chunk, and persists the index artifacts for later queries.
func NewBuildCmd() *cobra.Command {
	var corpusPath string
	var format string
	var indexDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vector index from a corpus file",
		Long: `Load a corpus file, embed every chunk, and persist the index artifacts.

The corpus can be JSONL (one chunk per line), a JSON array, or the NASA
Taskbook CSV export. Malformed records are skipped and counted, never fatal.
Artifacts are keyed to the embedding model: querying them later with a
different model fails rather than returning silently wrong results.

Examples:
  biorag build --corpus chunks.jsonl
  biorag build --corpus taskbook.csv --format csv --index-dir ./index
  EMBEDDING_PROVIDER=openai biorag build --corpus chunks.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			cfg := engineConfigFromEnv(log)
			if corpusPath != "" {
				cfg.CorpusPath = corpusPath
			}
			if format != "" {
				cfg.Format = corpus.Format(format)
			}
			if indexDir != "" {
				cfg.IndexDir = indexDir
			}
			if cfg.CorpusPath == "" {
				return fmt.Errorf("build: --corpus or CORPUS_PATH is required")
			}

			eng, _, err := newEngine(log, cfg)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			defer eng.Close()

			start := time.Now()
			sum, err := eng.Build(ctx)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			elapsed := time.Since(start).Round(time.Millisecond)

			log.Info("build complete",
				slog.Int("loaded", sum.Loaded),
				slog.Int("skipped", sum.Skipped),
				slog.Duration("elapsed", elapsed),
			)
			fmt.Printf("Indexed %d chunks (%d skipped) in %s\n", sum.Loaded, sum.Skipped, elapsed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&corpusPath, "corpus", "c", "", "Corpus file to index (overrides CORPUS_PATH)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Corpus format: jsonl, json, csv (default: detect from extension)")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "Directory for index artifacts (overrides INDEX_DIR)")

	return cmd
}
