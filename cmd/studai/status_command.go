package main

import (
	"errors"
	"fmt"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"studai/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, stage, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			addr := ctx.daemonAddress()

			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				if errors.Is(err, syscall.ECONNREFUSED) {
					if jsonOutput {
						return writeJSON(cmd, api.DaemonStatus{})
					}
					fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, fmt.Sprintf("Not running (%s)", addr), colorize))
					return nil
				}
				return wrapDaemonError(err, addr)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			daemonKind := statusOK
			daemonMsg := fmt.Sprintf("Running (pid %d, %s)", status.PID, addr)
			if !status.Running || !status.Workflow.Running {
				daemonKind = statusWarn
				daemonMsg = fmt.Sprintf("Stopping (pid %d)", status.PID)
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon", daemonKind, daemonMsg, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Registry", statusInfo, status.RegistryBackend, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Storage", statusInfo, status.StorageDriver, colorize))
			if status.HistoryPath != "" {
				fmt.Fprintln(stdout, renderStatusLine("History", statusInfo, status.HistoryPath, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("History", statusWarn, "Disabled", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Render workers", statusInfo,
				fmt.Sprintf("%d/%d busy", status.Workflow.RenderInUse, status.Workflow.RenderWorkers), colorize))
			if status.Workflow.LastError != "" {
				fmt.Fprintln(stdout, renderStatusLine("Last error", statusWarn, status.Workflow.LastError, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, health := range status.Workflow.StageHealth {
				kind := statusOK
				detail := health.Detail
				if !health.Ready {
					kind = statusError
				}
				if detail == "" {
					detail = "Ready"
				}
				fmt.Fprintln(stdout, renderStatusLine(health.Name, kind, detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Jobs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			table := renderTable([]string{"Status", "Count"}, buildStatsRows(status.Workflow.JobStats), []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			if table != "" {
				fmt.Fprintln(stdout)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	if len(deps) == 0 {
		return []string{renderStatusLine("Summary", statusInfo, "No external tools required", colorize)}
	}
	sorted := make([]api.DependencyStatus, len(deps))
	copy(sorted, deps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	lines := make([]string, 0, len(sorted))
	for _, dep := range sorted {
		switch {
		case dep.Available:
			lines = append(lines, renderStatusLine(dep.Name, statusOK, dep.Command, colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(dep.Name, statusWarn, "Optional: "+dependencyDetail(dep), colorize))
		default:
			lines = append(lines, renderStatusLine(dep.Name, statusError, dependencyDetail(dep), colorize))
		}
	}
	return lines
}

func dependencyDetail(dep api.DependencyStatus) string {
	if dep.Detail != "" {
		return dep.Detail
	}
	return "Not found"
}
