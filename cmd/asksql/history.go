package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/asksql/asksql/internal/history"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}
	cmd.AddCommand(newHistoryListCmd(flags))
	cmd.AddCommand(newHistoryShowCmd(flags))
	return cmd
}

func openRecorder(cmd *cobra.Command, flags *rootFlags) (*history.ObjectRecorder, error) {
	cfg, err := flags.resolveConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled; set ASKSQL_HISTORY_ENABLED=true")
	}
	objects, err := openHistoryStore(cmd.Context(), cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	return history.NewObjectRecorder(objects), nil
}

func newHistoryListCmd(flags *rootFlags) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run record keys for one UTC day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
				day = parsed
			}
			recorder, err := openRecorder(cmd, flags)
			if err != nil {
				return err
			}
			keys, err := recorder.List(cmd.Context(), day)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), key); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to list (YYYY-MM-DD, default today)")
	return cmd
}

func newHistoryShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <object-key>",
		Short: "Print one run record stored in the history bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, err := openRecorder(cmd, flags)
			if err != nil {
				return err
			}
			record, err := recorder.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(record)
		},
	}
}
