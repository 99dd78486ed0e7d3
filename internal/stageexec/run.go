package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studai/internal/logging"
	"studai/internal/services"
)

// Func is the unit of work for one stage. logger carries the stage fields.
type Func func(ctx context.Context, logger *slog.Logger) error

// Options controls stage execution, retry, and error classification.
type Options struct {
	Name      string
	Logger    *slog.Logger
	Attempts  int
	Backoff   time.Duration
	Pool      *Pool
	Marker    error
	Operation string
}

const maxBackoff = 30 * time.Second

// Run executes fn as the named stage. Only failures marked
// services.ErrTransient are retried. Errors without a service classification
// are wrapped with opts.Marker (ErrExternalTool when unset).
func Run(ctx context.Context, opts Options, fn Func) error {
	if fn == nil {
		return fmt.Errorf("stage function unavailable: %s", opts.Name)
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	marker := opts.Marker
	if marker == nil {
		marker = services.ErrExternalTool
	}
	operation := strings.TrimSpace(opts.Operation)
	if operation == "" {
		operation = opts.Name
	}

	stageCtx := services.WithStage(ctx, opts.Name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	if opts.Pool != nil {
		waitStart := time.Now()
		if err := opts.Pool.Acquire(stageCtx); err != nil {
			return services.Wrap(services.ErrTimeout, opts.Name, operation, "waiting for worker slot", err)
		}
		defer opts.Pool.Release()
		if waited := time.Since(waitStart); waited > time.Second {
			stageLogger.Debug("worker slot acquired", logging.Duration("waited", waited))
		}
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", Label(opts.Name)),
		logging.Int("max_attempts", attempts),
	)

	started := time.Now()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runGuarded(stageCtx, stageLogger, fn)
		if err == nil {
			stageLogger.Info(
				"stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Duration("duration", time.Since(started)),
				logging.Int("attempt", attempt),
			)
			return nil
		}
		if !errors.Is(err, services.ErrTransient) || attempt == attempts || stageCtx.Err() != nil {
			break
		}
		delay := backoffFor(opts.Backoff, attempt)
		logging.WarnWithContext(stageLogger, "stage attempt failed; retrying", "stage_retry",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient upstream failure"),
			logging.String(logging.FieldImpact, "stage is retried after backoff"),
		)
		if waitErr := sleep(stageCtx, delay); waitErr != nil {
			err = waitErr
			break
		}
	}

	if !services.IsClassified(err) {
		err = services.Wrap(marker, opts.Name, operation, "", err)
	}
	attrs := append([]logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Duration("duration", time.Since(started)),
	}, logging.FailureAttrs(err)...)
	stageLogger.Error("stage failed", logging.Args(attrs...)...)
	return err
}

// runGuarded converts a panic inside fn into an error.
func runGuarded(ctx context.Context, logger *slog.Logger, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return fn(ctx, logger)
}

func backoffFor(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base << (attempt - 1)
	if delay <= 0 || delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Label converts a stage identifier like "video_rendering" into "Video Rendering".
// A Caser keeps state between calls, so each call builds its own.
func Label(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(strings.ReplaceAll(stage, "_", " ")), " "))
}
