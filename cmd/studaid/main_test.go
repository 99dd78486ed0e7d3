package main

import (
	"context"
	"testing"

	"studai/internal/config"
	"studai/internal/logging"
	"studai/internal/testsupport"
)

func TestBuildDaemonStartsAndStops(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	d, err := buildDaemon(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.StorageDriver != config.StorageDriverLocal {
		t.Fatalf("unexpected storage driver %q", status.StorageDriver)
	}
	if status.HistoryPath != cfg.History.Path {
		t.Fatalf("expected history archive at %s, got %q", cfg.History.Path, status.HistoryPath)
	}
	d.Stop()
}

func TestBuildDaemonRejectsUnknownRegistry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Registry.Backend = "etcd"
	if _, err := buildDaemon(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown registry backend")
	}
}

func TestReportPreflightToleratesMissingCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reportPreflight(context.Background(), cfg, logging.NewNop())
}
