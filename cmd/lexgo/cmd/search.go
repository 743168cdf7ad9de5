package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lexgo"
)

type searchOptions struct {
	index  string
	limit  uint32
	offset uint32
	format string
}

func newSearchCmd(cfg *Config) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a ranked query against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.index, "index", "i", "lexgo-index", "Path to the index directory")
	cmd.Flags().Uint32VarP(&opts.limit, "limit", "n", 10, "Maximum number of hits to return")
	cmd.Flags().Uint32Var(&opts.offset, "offset", 0, "Number of ranked hits to skip")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runSearch(cmd *cobra.Command, cfg *Config, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	lopts, err := cfg.Options()
	if err != nil {
		return err
	}

	idx, err := lexgo.Open(opts.index, lopts...)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	res, err := idx.Search(cmd.Context(), query, opts.limit, opts.offset)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	out := cmd.OutOrStdout()

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(res)
	}

	if len(res.Hits) == 0 {
		fmt.Fprintf(out, "No results for %q in %s\n", query, res.Duration)
		return nil
	}

	fmt.Fprintf(out, "%d of %d matches for %q in %s:\n\n", len(res.Hits), res.TotalMatches, query, res.Duration)

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tID\tTEXT")

	for i, hit := range res.Hits {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", int(opts.offset)+i+1, hit.Score, hit.ExternalID, snippet(hit.Text, 60))
	}

	return w.Flush()
}

// snippet collapses whitespace and keeps the first n runes of text.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[:n]) + "..."
}
