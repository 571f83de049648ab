package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/store"
)

// NewHistoryCmd constructs the `biorag history` command, which lists the most
// recently answered questions from the local history database.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered questions",
		Long: `List the most recent questions answered by the server, newest first.

History is recorded by the serve command for every /api/ask request. The
answer text is stored alongside the question, the synthesizer that produced
it, and the retrieval evidence (source count and top similarity score).

Examples:
  biorag history
  biorag history --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := os.Getenv("BIORAG_HISTORY_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("history: disabled via BIORAG_HISTORY_DB=disabled")
			}
			if dbPath == "" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}

			hs, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: failed to open %s: %w", dbPath, err)
			}
			defer hs.Close()

			entries, err := hs.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No questions recorded yet.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("[%s] %s\n    answered by %s with %d sources (top score %.3f)\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.Query, e.Synthesizer, e.Sources, e.TopScore)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to list")

	return cmd
}
