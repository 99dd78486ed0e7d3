package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studai/internal/jobs"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/services"
)

// ShutdownMessage is recorded on jobs interrupted by daemon shutdown.
const ShutdownMessage = "shutdown"

// Start enables job submission. Jobs run under ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.registry == nil {
		return errors.New("workflow registry not configured")
	}
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.stopping = false
	m.started = m.now()
	return nil
}

// Stop cancels in-flight jobs, waits up to grace for them to record their
// outcome, then marks any job still unfinished as failed with "shutdown".
func (m *Manager) Stop(grace time.Duration) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.stopping = true
	m.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	if grace <= 0 {
		grace = 10 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		m.logger.Warn("jobs still running after shutdown grace; marking them failed",
			logging.Duration("grace", grace),
			logging.String(logging.FieldEventType, "shutdown_grace_expired"),
			logging.String(logging.FieldErrorHint, "raise workflow.shutdown_grace for long renders"),
			logging.String(logging.FieldImpact, "in-flight jobs end in error"),
		)
	}

	m.mu.RLock()
	remaining := make([]string, 0, len(m.active))
	for id := range m.active {
		remaining = append(remaining, id)
	}
	m.mu.RUnlock()
	for _, id := range remaining {
		m.markShutdown(id)
	}
}

// Running reports whether the manager accepts submissions.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Submit registers a job and starts it in the background. The returned job is
// the queued snapshot.
func (m *Manager) Submit(ctx context.Context, sub Submission) (*jobs.Job, error) {
	sub.Instruction = strings.TrimSpace(sub.Instruction)
	if !sub.hasDocument() && sub.Instruction == "" {
		return nil, services.Wrap(services.ErrValidation, "submit", "validate",
			"a document or user_additional_input is required", nil)
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil, services.Wrap(services.ErrConfiguration, "submit", "enqueue", "workflow manager is not running", nil)
	}
	runCtx := m.runCtx
	m.wg.Add(1)
	m.mu.Unlock()

	name := strings.TrimSpace(sub.DocumentName)
	if name == "" && sub.DocumentPath != "" {
		name = filepath.Base(sub.DocumentPath)
	}
	job := jobs.NewJob(m.newID(), jobs.Request{
		DocumentName: name,
		Instruction:  sub.Instruction,
		Gender:       sub.Gender,
		Destination:  sub.DestinationLabel,
	}, m.now())
	if err := m.registry.Create(ctx, job); err != nil {
		m.wg.Done()
		return nil, err
	}
	sub.DocumentName = name

	m.mu.Lock()
	m.active[job.ID] = struct{}{}
	m.mu.Unlock()

	go m.runJob(runCtx, job.Clone(), sub)

	logging.WithContext(services.WithJobID(ctx, job.ID), m.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("label", job.Label()),
		logging.Bool("has_document", sub.hasDocument()),
	)
	return job, nil
}

// runJob is the per-job boundary. Nothing that happens inside escapes it.
func (m *Manager) runJob(ctx context.Context, job *jobs.Job, sub Submission) {
	defer m.wg.Done()
	defer m.finish(job.ID)

	ctx = services.WithJobID(ctx, job.ID)
	state := &pipelineState{
		jobID:   job.ID,
		fileID:  fileIDFor(job.ID, sub.DocumentName),
		workDir: filepath.Join(m.cfg.Paths.WorkDir, "jobs", job.ID),
		dest:    sub.Destination,
		sub:     sub,
	}
	defer func() {
		if r := recover(); r != nil {
			m.failJob(ctx, state, services.Wrap(services.ErrExternalTool, "pipeline", "run", fmt.Sprintf("panic: %v", r), nil))
		}
		if err := os.RemoveAll(state.workDir); err != nil {
			m.logger.Debug("job workspace cleanup failed", logging.Error(err))
		}
	}()

	select {
	case m.jobSlots <- struct{}{}:
		defer func() { <-m.jobSlots }()
	case <-ctx.Done():
		m.failJob(ctx, state, ctx.Err())
		return
	}

	if err := os.MkdirAll(state.workDir, 0o755); err != nil {
		m.failJob(ctx, state, services.Wrap(services.ErrConfiguration, "start", "workspace", "create job workspace", err))
		return
	}
	if err := m.execute(ctx, state); err != nil {
		m.failJob(ctx, state, err)
	}
}

func (m *Manager) finish(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) isStopping() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopping
}

// markShutdown fails a job that did not reach a terminal state before shutdown.
func (m *Manager) markShutdown(id string) {
	ctx := services.WithJobID(context.Background(), id)
	if current, err := m.registry.Get(ctx, id); err != nil || current.Status.Terminal() {
		return
	}
	job, err := m.registry.Update(ctx, id, func(j *jobs.Job) error {
		j.Status = jobs.StatusError
		j.Stage = string(notifications.StageError)
		j.StageMessage = ShutdownMessage
		j.Error = ShutdownMessage
		j.ErrorKind = string(services.KindUnknown)
		return nil
	})
	if err != nil {
		m.logger.Debug("shutdown mark skipped", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	m.setLastJob(job)
}

// fileIDFor builds the object-name stem: the job id, plus the document name
// when one was uploaded.
func fileIDFor(jobID, documentName string) string {
	name := strings.TrimSpace(filepath.Base(documentName))
	if name == "" || name == "." || name == "/" {
		return jobID
	}
	return jobID + "_" + name
}
