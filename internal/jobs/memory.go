package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry keeps jobs in a mutex-guarded map.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryRegistry returns an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]*Job), now: time.Now}
}

func (r *MemoryRegistry) Create(_ context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return duplicate(job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	return job.Clone(), nil
}

func (r *MemoryRegistry) Update(_ context.Context, id string, mutate func(*Job) error) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	next, err := applyUpdate(current, mutate, r.now())
	if err != nil {
		return nil, err
	}
	r.jobs[id] = next
	return next.Clone(), nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	out := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRegistry) Prune(_ context.Context, before time.Time) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pruned []*Job
	for id, job := range r.jobs {
		if expired(job, before) {
			pruned = append(pruned, job)
			delete(r.jobs, id)
		}
	}
	sortNewestFirst(pruned)
	return pruned, nil
}

func (r *MemoryRegistry) Close() error { return nil }

func expired(job *Job, before time.Time) bool {
	return job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(before)
}

func sortNewestFirst(list []*Job) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
