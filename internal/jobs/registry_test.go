package jobs_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"studai/internal/jobs"
	"studai/internal/services"
)

func newJob(id string, created time.Time) *jobs.Job {
	return jobs.NewJob(id, jobs.Request{DocumentName: id + ".pdf"}, created)
}

func registries(t *testing.T) map[string]jobs.Registry {
	t.Helper()
	out := map[string]jobs.Registry{"memory": jobs.NewMemoryRegistry()}
	if addr := os.Getenv("STUDAI_TEST_REDIS_ADDR"); addr != "" {
		reg, err := jobs.NewRedisRegistry(context.Background(), jobs.RedisOptions{
			Addr:   addr,
			Prefix: "studai:test:" + t.Name() + ":",
			TTL:    time.Hour,
		})
		if err != nil {
			t.Fatalf("connect redis: %v", err)
		}
		out["redis"] = reg
	}
	for _, reg := range out {
		r := reg
		t.Cleanup(func() { _ = r.Close() })
	}
	return out
}

func TestRegistryLifecycle(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newJob("job-lifecycle", time.Now())
			if err := reg.Create(ctx, job); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := reg.Create(ctx, job); err == nil {
				t.Fatal("expected duplicate create to fail")
			}

			updated, err := reg.Update(ctx, job.ID, func(j *jobs.Job) error {
				j.Status = jobs.StatusProcessing
				j.StageMessage = "Extracting text"
				return nil
			})
			if err != nil {
				t.Fatalf("Update processing: %v", err)
			}
			if updated.Status != jobs.StatusProcessing || updated.StageMessage != "Extracting text" {
				t.Fatalf("unexpected job: %+v", updated)
			}

			url := "https://example/video.mp4"
			done, err := reg.Update(ctx, job.ID, func(j *jobs.Job) error {
				j.Status = jobs.StatusCompleted
				j.EnsureResult().VideoURL = &url
				return nil
			})
			if err != nil {
				t.Fatalf("Update completed: %v", err)
			}
			if done.CompletedAt == nil {
				t.Fatal("expected CompletedAt on terminal transition")
			}

			_, err = reg.Update(ctx, job.ID, func(j *jobs.Job) error {
				j.Status = jobs.StatusError
				return nil
			})
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error leaving terminal state, got %v", err)
			}

			got, err := reg.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != jobs.StatusCompleted || got.Result == nil || got.Result.VideoURL == nil || *got.Result.VideoURL != url {
				t.Fatalf("unexpected stored job: %+v", got)
			}
		})
	}
}

func TestRegistryGetMissing(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Get(context.Background(), "nope")
			if !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			_, err = reg.Update(context.Background(), "nope", func(*jobs.Job) error { return nil })
			if !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected not found on update, got %v", err)
			}
		})
	}
}

func TestRegistryMutateErrorLeavesJobUntouched(t *testing.T) {
	reg := jobs.NewMemoryRegistry()
	ctx := context.Background()
	if err := reg.Create(ctx, newJob("a", time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}
	boom := errors.New("boom")
	_, err := reg.Update(ctx, "a", func(j *jobs.Job) error {
		j.StageMessage = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	got, _ := reg.Get(ctx, "a")
	if got.StageMessage != "Queued" {
		t.Fatalf("expected unchanged job, got %q", got.StageMessage)
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := jobs.NewMemoryRegistry()
	ctx := context.Background()
	if err := reg.Create(ctx, newJob("a", time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := reg.Get(ctx, "a")
	got.StageMessage = "mutated"
	again, _ := reg.Get(ctx, "a")
	if again.StageMessage == "mutated" {
		t.Fatal("registry leaked internal state")
	}
}

func TestRegistryListAndPrune(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-time.Hour)
			for i, id := range []string{"old", "mid", "new"} {
				if err := reg.Create(ctx, newJob(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Fatalf("Create %s: %v", id, err)
				}
			}
			list, err := reg.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 3 || list[0].ID != "new" || list[2].ID != "old" {
				t.Fatalf("unexpected order: %v", ids(list))
			}

			for _, id := range []string{"old", "mid"} {
				if _, err := reg.Update(ctx, id, func(j *jobs.Job) error {
					j.Status = jobs.StatusError
					j.Error = "failed"
					return nil
				}); err != nil {
					t.Fatalf("Update %s: %v", id, err)
				}
			}

			pruned, err := reg.Prune(ctx, time.Now().Add(time.Minute))
			if err != nil {
				t.Fatalf("Prune: %v", err)
			}
			if len(pruned) != 2 {
				t.Fatalf("expected 2 pruned jobs, got %v", ids(pruned))
			}
			list, _ = reg.List(ctx)
			if len(list) != 1 || list[0].ID != "new" {
				t.Fatalf("expected queued job to survive prune, got %v", ids(list))
			}
		})
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to jobs.Status
		want     bool
	}{
		{jobs.StatusQueued, jobs.StatusProcessing, true},
		{jobs.StatusQueued, jobs.StatusError, true},
		{jobs.StatusQueued, jobs.StatusCompleted, false},
		{jobs.StatusProcessing, jobs.StatusProcessing, true},
		{jobs.StatusProcessing, jobs.StatusCompleted, true},
		{jobs.StatusProcessing, jobs.StatusQueued, false},
		{jobs.StatusCompleted, jobs.StatusCompleted, false},
		{jobs.StatusError, jobs.StatusProcessing, false},
	}
	for _, tc := range cases {
		if got := jobs.ValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestJobDegradedAndLabel(t *testing.T) {
	job := jobs.NewJob("x", jobs.Request{Instruction: "photosynthesis"}, time.Now())
	if job.Label() != "photosynthesis" {
		t.Fatalf("unexpected label %q", job.Label())
	}
	job.Status = jobs.StatusCompleted
	job.EnsureResult().Script = "hello"
	if !job.Degraded() {
		t.Fatal("expected completed job without video to be degraded")
	}
	clone := job.Clone()
	clone.Result.Script = "changed"
	if job.Result.Script != "hello" {
		t.Fatal("clone shares result")
	}
}

func ids(list []*jobs.Job) []string {
	out := make([]string, 0, len(list))
	for _, j := range list {
		out = append(out, j.ID)
	}
	return out
}
