package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/model"
)

type statsOutput struct {
	Profile  string            `json:"profile"`
	DocCount uint64            `json:"doc_count"`
	Memory   model.MemoryStats `json:"memory"`
}

func newStatsCmd(cfg *Config) *cobra.Command {
	var (
		index  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document counts and memory accounting for the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}

			lopts, err := cfg.Options()
			if err != nil {
				return err
			}

			idx, err := lexgo.Open(index, lopts...)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			docs, err := idx.DocCount()
			if err != nil {
				return err
			}

			stats, err := idx.MemoryStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(statsOutput{
					Profile:  idx.Profile().String(),
					DocCount: docs,
					Memory:   stats,
				})
			}

			fmt.Fprintf(out, "Profile:         %s\n", idx.Profile())
			fmt.Fprintf(out, "Documents:       %d\n", docs)
			fmt.Fprintf(out, "Index bytes:     %d\n", stats.IndexBytes)
			fmt.Fprintf(out, "Term dict bytes: %d\n", stats.TermDictBytes)
			fmt.Fprintf(out, "Postings bytes:  %d\n", stats.PostingsBytes)
			fmt.Fprintf(out, "Mapped bytes:    %d\n", stats.MmapBytes)

			return nil
		},
	}

	cmd.Flags().StringVarP(&index, "index", "i", "lexgo-index", "Path to the index directory")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")

	return cmd
}
