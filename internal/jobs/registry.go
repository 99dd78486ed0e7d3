package jobs

import (
	"context"
	"fmt"
	"time"

	"studai/internal/services"
)

// Registry stores live job state. Implementations must be safe for
// concurrent use.
type Registry interface {
	// Create inserts a new job. The id must be unused.
	Create(ctx context.Context, job *Job) error
	// Get returns a snapshot, or an error wrapping services.ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)
	// Update applies mutate to the stored job atomically and returns the new snapshot.
	Update(ctx context.Context, id string, mutate func(*Job) error) (*Job, error)
	// List returns snapshots of all live jobs, newest first.
	List(ctx context.Context) ([]*Job, error)
	// Prune removes terminal jobs completed before the cutoff and returns them.
	Prune(ctx context.Context, before time.Time) ([]*Job, error)
	Close() error
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "registry", "get", fmt.Sprintf("job %s not found", id), nil)
}

func duplicate(id string) error {
	return services.Wrap(services.ErrValidation, "registry", "create", fmt.Sprintf("job %s already exists", id), nil)
}
