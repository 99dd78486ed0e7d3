package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"studai/internal/api"
	"studai/internal/jobs/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show jobs archived after the retention window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history archive is disabled (set history.enabled = true)")
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				entry, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view := api.FromHistoryEntry(entry)
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				printJobDetail(out, view.Job, shouldColorize(out))
				fmt.Fprintln(out, renderStatusLine("Archived", statusInfo, formatDisplayTime(view.ArchivedAt), shouldColorize(out)))
				return nil
			}

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			views := make([]api.HistoryEntry, 0, len(entries))
			for _, entry := range entries {
				views = append(views, api.FromHistoryEntry(entry))
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}
			rows := buildHistoryRows(views)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
				return nil
			}
			table := renderTable(
				[]string{"ID", "Document", "Outcome", "Completed", "Archived"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
