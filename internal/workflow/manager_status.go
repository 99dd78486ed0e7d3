package workflow

import (
	"context"
	"time"

	"studai/internal/deps"
	"studai/internal/jobs"
	"studai/internal/logging"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool                `json:"running"`
	StartedAt     time.Time           `json:"started_at,omitempty"`
	ActiveJobs    int                 `json:"active_jobs"`
	RenderWorkers int                 `json:"render_workers"`
	RenderInUse   int                 `json:"render_in_use"`
	LastError     string              `json:"last_error,omitempty"`
	LastJob       *jobs.Job           `json:"last_job,omitempty"`
	JobStats      map[jobs.Status]int `json:"job_stats"`
	StageHealth   []StageHealth       `json:"stage_health"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:       m.running,
		StartedAt:     m.started,
		ActiveJobs:    len(m.active),
		RenderWorkers: m.renderPool.Size(),
		RenderInUse:   m.renderPool.InUse(),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		summary.LastJob = m.lastJob.Clone()
	}
	m.mu.RUnlock()

	summary.JobStats = make(map[jobs.Status]int)
	list, err := m.registry.List(ctx)
	if err != nil {
		m.logger.Warn("job stats unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "registry_list_failed"),
			logging.String(logging.FieldErrorHint, "check registry backend connectivity"),
			logging.String(logging.FieldImpact, "status omits job counts"),
		)
	}
	for _, job := range list {
		summary.JobStats[job.Status]++
	}
	summary.StageHealth = m.stageHealth()
	return summary
}

func (m *Manager) stageHealth() []StageHealth {
	health := make([]StageHealth, 0, 5)
	add := func(name string, ready bool, detail string) {
		if ready {
			health = append(health, HealthyStage(name))
			return
		}
		health = append(health, UnhealthyStage(name, detail))
	}
	add("pdf_extraction", m.deps.Extractor != nil, "no extractor configured")
	add("script_generation", m.deps.Scripts != nil, "no script generator configured")
	add("tts_generation", m.deps.Speech != nil, "no speech synthesizer configured")
	add("storage", m.deps.Store != nil, "no artifact store configured")
	ffmpeg := deps.ResolveFFmpeg(m.cfg.Compositor.FFmpegPath)
	add("video_editing", m.deps.Compositor != nil && ffmpeg.Available, "ffmpeg not found; jobs complete without video")
	return health
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *jobs.Job) {
	m.mu.Lock()
	m.lastJob = job.Clone()
	m.mu.Unlock()
}
