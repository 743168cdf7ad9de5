// Package cmd implements the lexgo command line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command and wires up all subcommands.
func NewRootCmd() *cobra.Command {
	var cfgPath string
	cfg := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "lexgo",
		Short: "Embedded full-text search indexes on local disk",
		Long: `Lexgo maintains full-text indexes on local disk: create an index with a
storage profile, ingest documents from JSON lines, and run ranked BM25
queries against it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flag := cmd.Flags().Lookup("config")
			loaded, err := LoadConfig(cfgPath, flag != nil && flag.Changed)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", ".lexgo.yaml", "Path to the YAML config file")

	cmd.AddCommand(newCreateCmd(&cfg))
	cmd.AddCommand(newIngestCmd(&cfg))
	cmd.AddCommand(newSearchCmd(&cfg))
	cmd.AddCommand(newStatsCmd(&cfg))
	cmd.AddCommand(newProfilesCmd())

	return cmd
}

// ExecuteContext runs the root command with the given context.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
