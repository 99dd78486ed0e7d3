package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"studai/internal/api"
)

func buildJobRows(list []api.Job) [][]string {
	if len(list) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			displayLabel(job.Label),
			formatStatusLabel(job.Status),
			formatStatusLabel(job.Stage),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildHistoryRows(entries []api.HistoryEntry) [][]string {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		outcome := formatStatusLabel(entry.Status)
		if entry.Result != nil && entry.Result.VideoError != "" {
			outcome += " (no video)"
		}
		rows = append(rows, []string{
			entry.ID,
			displayLabel(entry.Label),
			outcome,
			formatDisplayTime(entry.CompletedAt),
			formatDisplayTime(entry.ArchivedAt),
		})
	}
	return rows
}

func buildStatsRows(stats map[string]int) [][]string {
	order := []string{"queued", "processing", "completed", "error"}
	rows := make([][]string, 0, len(order))
	for _, key := range order {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func printJobDetail(out io.Writer, job api.Job, colorize bool) {
	degraded := job.Result != nil && job.Result.VideoError != ""
	fmt.Fprintln(out, renderStatusLine("Job", statusInfo, job.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status, degraded), formatStatusLabel(job.Status), colorize))
	if job.Label != "" {
		fmt.Fprintln(out, renderStatusLine("Document", statusInfo, job.Label, colorize))
	}
	if job.Stage != "" {
		message := formatStatusLabel(job.Stage)
		if job.StageMessage != "" {
			message += " - " + job.StageMessage
		}
		fmt.Fprintln(out, renderStatusLine("Stage", statusInfo, message, colorize))
	}
	if job.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.Error, colorize))
	}
	if job.Result != nil {
		result := job.Result
		if result.Topic != "" {
			fmt.Fprintln(out, renderStatusLine("Topic", statusInfo, result.Topic, colorize))
		}
		if result.Language != "" {
			fmt.Fprintln(out, renderStatusLine("Language", statusInfo, result.Language, colorize))
		}
		if result.AudioURL != "" {
			fmt.Fprintln(out, renderStatusLine("Audio", statusOK, result.AudioURL, colorize))
		}
		switch {
		case result.VideoURL != nil:
			fmt.Fprintln(out, renderStatusLine("Video", statusOK, *result.VideoURL, colorize))
		case result.VideoError != "":
			fmt.Fprintln(out, renderStatusLine("Video", statusWarn, result.VideoError, colorize))
		}
		if result.PDFBlobURL != "" {
			fmt.Fprintln(out, renderStatusLine("Document URL", statusInfo, result.PDFBlobURL, colorize))
		}
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatDisplayTime(job.CreatedAt), colorize))
	if job.CompletedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Completed", statusInfo, formatDisplayTime(job.CompletedAt), colorize))
	}
}

func displayLabel(label string) string {
	if strings.TrimSpace(label) == "" {
		return "Unknown"
	}
	return label
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}
