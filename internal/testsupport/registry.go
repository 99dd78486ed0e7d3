package testsupport

import (
	"context"
	"testing"
	"time"

	"studai/internal/config"
	"studai/internal/jobs"
)

// MustOpenRegistry opens the configured job registry and registers cleanup.
func MustOpenRegistry(t testing.TB, cfg *config.Config) jobs.Registry {
	t.Helper()

	registry, err := jobs.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = registry.Close()
	})
	return registry
}

// WaitForTerminal polls the registry until the job reaches completed or error.
func WaitForTerminal(t testing.TB, registry jobs.Registry, id string, timeout time.Duration) *jobs.Job {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		job, err := registry.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("registry.Get(%s): %v", id, err)
		}
		if job.Status.Terminal() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still %s after %s (stage %s)", id, job.Status, timeout, job.Stage)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
