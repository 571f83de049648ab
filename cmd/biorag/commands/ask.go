package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/logging"
)

// NewAskCmd constructs the `biorag ask` command, which runs the full
// retrieve-assemble-synthesize pipeline for a single question.
func NewAskCmd() *cobra.Command {
	var topK int
	var minScore float32
	var maxContext int
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about space bioscience research",
		Long: `Answer a natural language question using the indexed research corpus.

The question is embedded, matched against the corpus, and the best passages
are assembled into a bounded context that grounds the synthesized answer.
Answers always cite their sources.

Examples:
  biorag ask "what does microgravity do to bone density?"
  biorag ask --sources "how do plants grow in space?"
  SYNTH_PROVIDER=openai biorag ask "effects of cosmic radiation on DNA"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			eng, syn, err := newEngine(log, engineConfigFromEnv(log))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer eng.Close()

			if err := eng.Open(); err != nil {
				return fmt.Errorf("ask: no usable index (run `biorag build` first): %w", err)
			}
			syncCorpusSize(eng, syn)

			question := strings.Join(args, " ")
			ans, err := eng.Ask(ctx, question, topK, minScore, maxContext)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(ans.Text)

			if showSources && len(ans.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, src := range ans.Sources {
					fmt.Printf("  %d. %s — %s\n", i+1, src.Source(), src.Section())
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum chunks to retrieve (default: 5)")
	cmd.Flags().Float32Var(&minScore, "min-score", 0, "Similarity threshold; negative disables (default: 0.3)")
	cmd.Flags().IntVar(&maxContext, "max-context", 0, "Context character budget (default: 2000)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "List the sources behind the answer")

	return cmd
}
