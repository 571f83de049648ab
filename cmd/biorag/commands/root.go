// Package commands defines all Cobra CLI commands for the biorag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spacebio/biorag/internal/audit"
	"github.com/spacebio/biorag/internal/config"
	"github.com/spacebio/biorag/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "biorag",
		Short: "biorag — retrieval-augmented QA over space bioscience research",
		Long: `biorag answers natural language questions about space bioscience using
retrieval-augmented generation over a corpus of NASA research publications.

Questions are matched against pre-embedded text chunks by semantic similarity,
and answers are grounded in the retrieved passages with source citations.

The embedding backend is selected via the EMBEDDING_PROVIDER environment
variable or a YAML config file (~/.biorag/config.yaml).
See 'biorag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.biorag/config.yaml)")

	root.AddCommand(
		NewBuildCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewStatsCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
