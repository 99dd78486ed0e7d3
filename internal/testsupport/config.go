package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"studai/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// External collaborators are left unconfigured, captions are off, and stage
// retries are immediate so pipelines finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Driver = config.StorageDriverLocal
	cfgVal.Storage.LocalDir = filepath.Join(base, "artifacts")
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Captions.Enabled = false
	cfgVal.Transcription.Provider = config.TranscriptionNone
	cfgVal.Workflow.StageAttempts = 1
	cfgVal.Workflow.StageBackoffMillis = 0
	cfgVal.Workflow.HeartbeatInterval = 1
	cfgVal.Workflow.ShutdownGrace = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the shared bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithBaseVideo writes a placeholder base clip and points the compositor at it.
func WithBaseVideo() ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "assets", "base.mp4")
		WriteFile(b.t, path, 1024)
		b.cfg.Compositor.BaseVideo = path
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the media and document tools the
// pipeline shells out to are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "pdftotext", "pdftoppm", "tesseract"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
