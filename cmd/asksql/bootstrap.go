package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/bootstrap"
)

func newBootstrapCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create and seed the demo company tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolveConfig()
			if err != nil {
				return err
			}
			// The seeder runs explicitly below.
			cfg.Store.Bootstrap = false
			a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			applied, err := bootstrap.NewSeeder(a.db).Ensure(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements to %s store\n", applied, cfg.Store.Driver)
			return err
		},
	}
}
