package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/logging"
)

// NewStatsCmd constructs the `biorag stats` command, which prints corpus and
// index statistics for the persisted artifacts.
func NewStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		Long: `Load the persisted index and print corpus composition and index shape.

Examples:
  biorag stats
  biorag stats --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			eng, _, err := newEngine(log, engineConfigFromEnv(log))
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer eng.Close()

			if err := eng.Open(); err != nil {
				return fmt.Errorf("stats: no usable index (run `biorag build` first): %w", err)
			}

			st, err := eng.Stats()
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			fmt.Printf("Chunks:     %d\n", st.Corpus.TotalChunks)
			fmt.Printf("Vectors:    %d\n", st.IndexSize)
			fmt.Printf("Dimension:  %d\n", st.Dimension)
			fmt.Printf("Model:      %s\n", st.Model)
			fmt.Printf("Sources:    %d\n", len(st.Corpus.Sources))
			if len(st.Corpus.Sections) > 0 {
				fmt.Println("Sections:")
				for name, n := range st.Corpus.Sections {
					fmt.Printf("  %-14s %d\n", name, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit statistics as JSON")

	return cmd
}
