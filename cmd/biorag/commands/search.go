package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/logging"
)

// snippetLen bounds the chunk excerpt printed per search result.
const snippetLen = 200

// NewSearchCmd constructs the `biorag search` command, which retrieves the
// most similar chunks for a query without answer synthesis.
func NewSearchCmd() *cobra.Command {
	var topK int
	var minScore float32

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find the research chunks most similar to a query",
		Long: `Retrieve the corpus chunks most semantically similar to the query.

Results are ranked by cosine similarity and filtered by the minimum score
threshold. An empty result list means nothing in the corpus cleared the
threshold — it is not an error.

Examples:
  biorag search "effects of microgravity on bone density"
  biorag search --top-k 10 "plant growth in space"
  biorag search --min-score -1 "solar radiation"   # no threshold`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			eng, _, err := newEngine(log, engineConfigFromEnv(log))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer eng.Close()

			if err := eng.Open(); err != nil {
				return fmt.Errorf("search: no usable index (run `biorag build` first): %w", err)
			}

			query := strings.Join(args, " ")
			results, err := eng.Search(ctx, query, topK, minScore)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("No chunks cleared the similarity threshold.")
				return nil
			}

			for _, res := range results {
				text := res.Chunk.Text
				if len(text) > snippetLen {
					text = text[:snippetLen] + "…"
				}
				fmt.Printf("%2d. [%.3f] %s — %s\n    %s\n",
					res.Rank, res.Score, res.Chunk.Source(), res.Chunk.Section(), text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum results to return (default: 5)")
	cmd.Flags().Float32Var(&minScore, "min-score", 0, "Similarity threshold; negative disables (default: 0.3)")

	return cmd
}
