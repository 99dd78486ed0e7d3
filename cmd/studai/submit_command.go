package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"studai/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		instruction  string
		gender       string
		callbackURL  string
		wait         bool
		pollInterval time.Duration
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "submit [document.pdf]",
		Short: "Submit a document or topic for video generation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := api.SubmitRequest{
				Instruction: strings.TrimSpace(instruction),
				Gender:      gender,
				CallbackURL: callbackURL,
			}
			if len(args) == 1 {
				request.FilePath = args[0]
			}
			if request.FilePath == "" && request.Instruction == "" {
				return errors.New("provide a document path or --instruction")
			}

			client := ctx.client()
			addr := ctx.daemonAddress()
			accepted, err := client.Submit(cmd.Context(), request)
			if err != nil {
				return wrapDaemonError(err, addr)
			}
			if !wait {
				if jsonOutput {
					return writeJSON(cmd, accepted)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s)\n", accepted.JobID, accepted.Status)
				return nil
			}

			job, err := waitForJob(cmd.Context(), client, accepted.JobID, pollInterval, func(job *api.Job) {
				if !jsonOutput && job.Stage != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", formatStatusLabel(job.Stage), job.StageMessage)
				}
			})
			if err != nil {
				return wrapDaemonError(err, addr)
			}
			if jsonOutput {
				if err := writeJSON(cmd, job); err != nil {
					return err
				}
			} else {
				printJobDetail(cmd.OutOrStdout(), *job, shouldColorize(cmd.OutOrStdout()))
			}
			if job.Status == "error" {
				return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "Additional instruction or topic for the script")
	cmd.Flags().StringVarP(&gender, "gender", "g", "", "Narrator voice gender (male or female)")
	cmd.Flags().StringVar(&callbackURL, "callback", "", "Webhook URL that receives progress events")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "Status poll interval while waiting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// waitForJob polls until the job reaches a terminal status. onStage runs
// whenever the reported stage changes.
func waitForJob(ctx context.Context, client *api.Client, id string, interval time.Duration, onStage func(*api.Job)) (*api.Job, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastStage := ""
	for {
		job, err := client.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Stage != lastStage {
			lastStage = job.Stage
			if onStage != nil {
				onStage(job)
			}
		}
		if job.Status == "completed" || job.Status == "error" {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
