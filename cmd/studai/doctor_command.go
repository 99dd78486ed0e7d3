package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"studai/internal/preflight"
)

type doctorReport struct {
	Checks       []doctorCheck      `json:"checks"`
	Dependencies []doctorDependency `json:"dependencies"`
	Healthy      bool               `json:"healthy"`
}

type doctorCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type doctorDependency struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run preflight checks against the local configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			binaries := preflight.CheckSystemDeps(cfg)

			report := doctorReport{Healthy: !preflight.Failed(results)}
			for _, r := range results {
				report.Checks = append(report.Checks, doctorCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
			}
			for _, b := range binaries {
				report.Dependencies = append(report.Dependencies, doctorDependency{
					Name:      b.Name,
					Command:   b.Command,
					Optional:  b.Optional,
					Available: b.Available,
					Detail:    b.Detail,
				})
				if !b.Available && !b.Optional {
					report.Healthy = false
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, check := range report.Checks {
					kind := statusOK
					if !check.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
				}
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Binaries", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := make([][]string, 0, len(report.Dependencies))
				for _, dep := range report.Dependencies {
					state := "available"
					switch {
					case !dep.Available && dep.Optional:
						state = "missing (optional)"
					case !dep.Available:
						state = "missing"
					}
					rows = append(rows, []string{dep.Name, dep.Command, state, dep.Detail})
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable([]string{"Name", "Command", "State", "Detail"}, rows, nil))
				}
			}

			if !report.Healthy {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
