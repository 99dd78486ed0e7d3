package preflight

import (
	"context"

	"studai/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// MinFreeBytes is the free space the work directory needs for one render.
const MinFreeBytes = 1 << 30

// RunAll executes all applicable preflight checks for the given config.
// Network checks only run when their credentials are configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinFreeBytes),
		CheckLLM(ctx, "Script LLM", cfg.LLM),
		CheckSpeechFromConfig(cfg),
		CheckStorageFromConfig(cfg),
		CheckTranscriptionFromConfig(cfg),
		CheckBaseVideo(cfg),
	}
	if cfg.Registry.Backend == config.RegistryRedis {
		results = append(results, CheckRedis(ctx, cfg.Registry))
	}
	return results
}

// Failed reports whether any non-passing result is present.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
