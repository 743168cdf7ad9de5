package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lexgo/handle"
	"github.com/hupe1980/lexgo/model"
)

func newProfilesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the available storage profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), handle.ListProfiles())
				return nil
			}

			for _, p := range model.Profiles() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as a JSON array")

	return cmd
}
