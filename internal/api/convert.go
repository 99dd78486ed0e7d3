package api

import (
	"sort"
	"time"

	"studai/internal/deps"
	"studai/internal/jobs"
	"studai/internal/jobs/history"
	"studai/internal/workflow"
)

// FromJob converts a registry job to its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:           job.ID,
		Status:       string(job.Status),
		Stage:        job.Stage,
		StageMessage: job.StageMessage,
		Label:        job.Label(),
		Error:        job.Error,
		ErrorKind:    job.ErrorKind,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
	if job.Result != nil {
		result := *job.Result
		dto.Result = &result
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = formatTime(*job.CompletedAt)
	}
	return dto
}

// FromJobs converts a list of jobs preserving order.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromHistoryEntry converts an archived job.
func FromHistoryEntry(entry history.Entry) HistoryEntry {
	return HistoryEntry{Job: FromJob(entry.Job), ArchivedAt: formatTime(entry.ArchivedAt)}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.JobStats))
	for status, count := range summary.JobStats {
		stats[string(status)] = count
	}
	health := make([]StageHealth, 0, len(summary.StageHealth))
	for _, h := range summary.StageHealth {
		health = append(health, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.SliceStable(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	out := WorkflowStatus{
		Running:       summary.Running,
		ActiveJobs:    summary.ActiveJobs,
		RenderWorkers: summary.RenderWorkers,
		RenderInUse:   summary.RenderInUse,
		JobStats:      stats,
		LastError:     summary.LastError,
		StageHealth:   health,
	}
	if !summary.StartedAt.IsZero() {
		out.StartedAt = formatTime(summary.StartedAt)
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		out.LastJob = &last
	}
	return out
}

// FromDependencies converts binary availability checks.
func FromDependencies(results []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(results))
	for _, dep := range results {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}
