package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/model"
)

func newCreateCmd(cfg *Config) *cobra.Command {
	var profileName string

	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a new index",
		Long: `Create initializes an empty index in the given directory with the chosen
storage profile. The profile is fixed for the lifetime of the index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := profileName
			if name == "" {
				name = cfg.Profile
			}

			profile, ok := model.ParseProfile(name)
			if !ok {
				return fmt.Errorf("unknown profile %q (one of: speed, balanced, compact)", name)
			}

			opts, err := cfg.Options()
			if err != nil {
				return err
			}

			idx, err := lexgo.Create(args[0], profile, opts...)
			if err != nil {
				return fmt.Errorf("creating index: %w", err)
			}

			if err := idx.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s index at %s\n", profile, args[0])

			return nil
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "Storage profile: speed, balanced or compact (default from config)")

	return cmd
}
