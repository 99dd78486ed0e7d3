package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"studai/internal/compositor"
	"studai/internal/config"
	"studai/internal/daemon"
	"studai/internal/jobs"
	"studai/internal/jobs/history"
	"studai/internal/storage"
	"studai/internal/testsupport"
	"studai/internal/workflow"
)

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, string) (string, error) { return "mitosis notes", nil }

type stubScripts struct{}

func (stubScripts) GenerateScript(context.Context, string, string) (string, error) {
	return "[EN] Cells divide in four phases.", nil
}

type stubSpeech struct{}

func (stubSpeech) Synthesize(_ context.Context, _, _, outputPath string) (string, string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", "", err
	}
	return outputPath, "english", os.WriteFile(outputPath, []byte("ID3audio"), 0o644)
}

type stubComposer struct{}

func (stubComposer) Compose(_ context.Context, req compositor.Request) (string, error) {
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", err
	}
	return req.Output, os.WriteFile(req.Output, []byte("video-bytes"), 0o644)
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	addr       string
}

// setupCLITestEnv writes a config file and starts a daemon with stubbed
// pipeline collaborators on a loopback port.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")

	cfg := testsupport.NewConfig(t, testsupport.WithBaseVideo())
	cfg.History.Enabled = true
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	registry := jobs.NewMemoryRegistry()
	local, err := storage.NewLocal(cfg.Storage.LocalDir, "http://studai.test", nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	archive, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	deps := workflow.Dependencies{
		Extractor:  stubExtractor{},
		Scripts:    stubScripts{},
		Speech:     stubSpeech{},
		Compositor: stubComposer{},
		Store:      local,
	}
	manager := workflow.NewManager(cfg, registry, deps, nil)
	d, err := daemon.New(cfg, daemon.Options{Registry: registry, Archive: archive, Workflow: manager, Store: local}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		d.Close()
	})

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath, addr: d.Addr()}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--addr", e.addr, "--config", e.configPath}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
