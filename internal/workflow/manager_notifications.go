package workflow

import (
	"context"
	"errors"

	"studai/internal/jobs"
	"studai/internal/logging"
	"studai/internal/notifications"
)

// advance records a stage boundary in the registry and emits its progress
// event. Only the first transition into processing reports registry errors;
// later boundaries log them and carry on.
func (m *Manager) advance(ctx context.Context, state *pipelineState, status jobs.Status, event notifications.Event) error {
	event.JobID = state.jobID
	_, err := m.registry.Update(ctx, state.jobID, func(j *jobs.Job) error {
		j.Status = status
		j.Stage = string(event.Stage)
		j.StageMessage = event.Message
		return nil
	})
	if err != nil {
		if event.Stage == notifications.StageStart {
			return err
		}
		if !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "job stage not recorded", "registry_update_failed",
				logging.String("event_stage", string(event.Stage)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check registry backend connectivity"),
				logging.String(logging.FieldImpact, "status polling shows a stale stage"),
			)
		}
	}
	m.notifier.Notify(ctx, state.dest, event)
	return nil
}

// complete records the terminal success state and emits the completed event.
func (m *Manager) complete(ctx context.Context, state *pipelineState) error {
	result := state.buildResult()
	job, err := m.registry.Update(ctx, state.jobID, func(j *jobs.Job) error {
		j.Status = jobs.StatusCompleted
		j.Stage = string(notifications.StageCompleted)
		j.StageMessage = msgCompleted
		j.Result = result
		return nil
	})
	if err != nil {
		return err
	}
	m.setLastJob(job)

	event := notifications.Event{Stage: notifications.StageCompleted, Message: msgCompleted, JobID: state.jobID}.
		With("script", result.Script).
		With("audio_url", result.AudioURL).
		With("video_url", result.VideoURL).
		With("language", result.Language)
	if result.PDFBlobURL != "" {
		event = event.With("pdf_url", result.PDFBlobURL)
	}
	if result.VideoError != "" {
		event = event.With("video_error", result.VideoError)
	}
	m.notifier.Notify(ctx, state.dest, event)

	logger := logging.WithContext(ctx, m.logger)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Bool("degraded", job.Degraded()),
		logging.String("language", result.Language),
	)
	if err := m.alerts.NotifyJobCompleted(context.WithoutCancel(ctx), job.ID, job.Label(), job.Degraded()); err != nil {
		logger.Debug("completion alert failed", logging.Error(err))
	}
	return nil
}

func (s *pipelineState) buildResult() *jobs.Result {
	r := s.result
	result := &jobs.Result{
		Script:     r.script,
		AudioURL:   r.audioURL,
		Language:   r.language,
		PDFName:    r.pdfName,
		PDFBlobURL: r.pdfBlobURL,
		Topic:      r.topic,
		VideoError: r.videoError,
	}
	if r.videoURL != "" {
		url := r.videoURL
		result.VideoURL = &url
	}
	return result
}
