package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/schema"
)

func newSchemaCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema description given to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolveConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tables, err := a.introspector.Tables(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(tables)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), schema.Render(tables))
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print tables and columns as JSON")
	return cmd
}
