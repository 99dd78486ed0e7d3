package main

import (
	"context"
	"fmt"
	"log/slog"

	"studai/internal/config"
	"studai/internal/daemon"
	"studai/internal/jobs"
	"studai/internal/jobs/history"
	"studai/internal/logging"
	"studai/internal/notifications"
	"studai/internal/preflight"
	"studai/internal/workflow"
)

// buildDaemon wires the registry, archive, pipeline collaborators, and
// workflow manager into a daemon.
func buildDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	registry, err := jobs.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open job registry: %w", err)
	}

	var archive *history.Store
	if cfg.History.Enabled {
		archive, err = history.Open(cfg.History.Path)
		if err != nil {
			_ = registry.Close()
			return nil, fmt.Errorf("open history archive: %w", err)
		}
	}

	deps, err := workflow.NewDependencies(cfg, logger)
	if err != nil {
		_ = registry.Close()
		if archive != nil {
			_ = archive.Close()
		}
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	alerts := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, registry, deps, logger, workflow.WithAlerts(alerts))
	return daemon.New(cfg, daemon.Options{
		Registry: registry,
		Archive:  archive,
		Workflow: manager,
		Store:    deps.Store,
		Alerts:   alerts,
	}, logger)
}

// reportPreflight logs failing local checks. Network checks are left to
// "studai doctor" so startup stays fast.
func reportPreflight(_ context.Context, cfg *config.Config, logger *slog.Logger) {
	results := []preflight.Result{
		preflight.CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		preflight.CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, preflight.MinFreeBytes),
		preflight.CheckSpeechFromConfig(cfg),
		preflight.CheckStorageFromConfig(cfg),
		preflight.CheckTranscriptionFromConfig(cfg),
		preflight.CheckBaseVideo(cfg),
	}
	for _, result := range results {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run studai doctor for the full report"),
			logging.String(logging.FieldImpact, "jobs needing this collaborator fail or degrade"),
		)
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		if !dep.Available {
			logger.Info("optional binary missing",
				logging.String("dependency", dep.Name),
				logging.String("detail", dep.Detail),
				logging.String(logging.FieldEventType, "dependency_missing"),
			)
		}
	}
}
