package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"studai/internal/api"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show a live job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Job(cmd.Context(), args[0])
			if err != nil {
				var statusErr *api.StatusError
				if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
					return fmt.Errorf("job %s not found (archived jobs are listed by `studai history`)", args[0])
				}
				return wrapDaemonError(err, ctx.daemonAddress())
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			printJobDetail(cmd.OutOrStdout(), *job, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List live jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.client().Jobs(cmd.Context())
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddress())
			}
			if jsonOutput {
				if list == nil {
					list = []api.Job{}
				}
				return writeJSON(cmd, list)
			}
			rows := buildJobRows(list)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No live jobs")
				return nil
			}
			table := renderTable(
				[]string{"ID", "Document", "Status", "Stage", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
