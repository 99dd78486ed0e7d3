package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"studai/internal/jobs"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/services"
)

// failJob moves the job to its terminal error state and emits the error event.
func (m *Manager) failJob(ctx context.Context, state *pipelineState, stageErr error) {
	message := m.classifyFailure(stageErr)
	kind := services.Kind(stageErr)
	if m.isStopping() && errors.Is(stageErr, context.Canceled) {
		message = ShutdownMessage
	}
	// The job context may already be cancelled; the terminal state must still land.
	persistCtx := context.WithoutCancel(ctx)

	job, err := m.registry.Update(persistCtx, state.jobID, func(j *jobs.Job) error {
		j.Status = jobs.StatusError
		j.Stage = string(notifications.StageError)
		j.StageMessage = message
		j.Error = message
		j.ErrorKind = string(kind)
		if state.result.script != "" || state.result.pdfName != "" || state.result.topic != "" {
			j.Result = state.buildResult()
		}
		return nil
	})

	logger := logging.WithContext(ctx, m.logger)
	details := services.Details(stageErr)
	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.Alert("job_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String("error_stage", details.Stage),
		logging.String("error_operation", details.Operation),
		logging.Error(stageErr),
	}
	if details.Hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, details.Hint))
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)

	if err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	} else {
		m.setLastJob(job)
	}
	m.setLastError(stageErr)

	event := notifications.Event{
		Stage:   notifications.StageError,
		Message: "Error: " + message,
		JobID:   state.jobID,
	}.With("error", message).With("error_kind", string(kind))
	m.notifier.Notify(persistCtx, state.dest, event)

	label := state.sub.DocumentName
	if label == "" {
		label = state.sub.Instruction
	}
	if err := m.alerts.NotifyJobFailed(persistCtx, state.jobID, label, errors.New(message)); err != nil {
		logger.Debug("failure alert failed", logging.Error(err))
	}
}

// degrade records why the video is missing; the job still completes.
func (m *Manager) degrade(ctx context.Context, state *pipelineState, err error) {
	reason := m.classifyFailure(err)
	state.result.videoError = reason
	state.result.videoURL = ""
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "video unavailable; completing without video", "video_degraded",
		logging.String("video_error", reason),
		logging.String(logging.FieldErrorKind, string(services.Kind(err))),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Details(err).Hint),
		logging.String(logging.FieldImpact, "job completes with script and audio only"),
	)
}

func (m *Manager) warnIgnored(logger *slog.Logger, msg, eventType string, err error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldImpact, "script is generated from the instruction alone"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err), logging.String(logging.FieldErrorKind, string(services.Kind(err))))
	}
	logging.WarnWithContext(logger, msg, eventType, attrs...)
}

func (m *Manager) classifyFailure(err error) string {
	if err == nil {
		return "pipeline failed without error detail"
	}
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if message == "" && details.Cause != nil {
		message = strings.TrimSpace(details.Cause.Error())
	}
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		return fmt.Sprintf("%s failed", details.Stage)
	}
	return message
}
