package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/config"
)

const serviceName = "asksql"

type rootFlags struct {
	dsn        string
	driver     string
	loadConfig func() (config.Config, error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithConfig(func() (config.Config, error) {
		return config.LoadFromEnv(serviceName)
	})
}

func newRootCmdWithConfig(load func() (config.Config, error)) *cobra.Command {
	flags := &rootFlags{loadConfig: load}

	cmd := &cobra.Command{
		Use:           "asksql",
		Short:         "asksql answers questions about a relational database in plain language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "Store driver override (sqlite, duckdb, postgres)")
	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "Store DSN override")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newAskCmd(flags))
	cmd.AddCommand(newBatchCmd(flags))
	cmd.AddCommand(newSchemaCmd(flags))
	cmd.AddCommand(newBootstrapCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))

	return cmd
}

// resolveConfig loads the environment and applies flag overrides before
// validating.
func (f *rootFlags) resolveConfig() (config.Config, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if f.driver != "" {
		cfg.Store.Driver = strings.ToLower(strings.TrimSpace(f.driver))
	}
	if f.dsn != "" {
		cfg.Store.DSN = strings.TrimSpace(f.dsn)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
