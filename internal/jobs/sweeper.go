package jobs

import (
	"context"
	"log/slog"
	"time"

	"studai/internal/logging"
)

// Archiver persists jobs removed from the live registry.
type Archiver interface {
	Archive(ctx context.Context, jobs []*Job) error
}

// Sweeper periodically prunes terminal jobs older than the retention window.
type Sweeper struct {
	registry  Registry
	archive   Archiver
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper constructs a sweeper. archive may be nil.
func NewSweeper(registry Registry, archive Archiver, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		registry:  registry,
		archive:   archive,
		retention: retention,
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "sweeper"),
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.registry == nil || s.retention <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("job sweep failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "registry_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check registry backend connectivity"),
					logging.String(logging.FieldImpact, "terminal jobs stay in the registry until the next sweep"),
				)
			}
		}
	}
}

// SweepOnce prunes expired jobs and archives them. It returns the number removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	pruned, err := s.registry.Prune(ctx, cutoff)
	if len(pruned) > 0 && s.archive != nil {
		if archiveErr := s.archive.Archive(ctx, pruned); archiveErr != nil {
			s.logger.Warn("job archive failed",
				logging.Int("jobs", len(pruned)),
				logging.Error(archiveErr),
				logging.String(logging.FieldEventType, "history_archive_failed"),
				logging.String(logging.FieldErrorHint, "check history.path permissions"),
				logging.String(logging.FieldImpact, "pruned jobs were not recorded in history"),
			)
		}
	}
	if len(pruned) > 0 {
		s.logger.Info("pruned expired jobs",
			logging.Int("jobs", len(pruned)),
			logging.String(logging.FieldEventType, "registry_pruned"),
		)
	}
	return len(pruned), err
}
