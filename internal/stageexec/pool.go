package stageexec

import "context"

// Pool bounds how many CPU-heavy stages run at once across all jobs.
type Pool struct {
	slots chan struct{}
}

// NewPool returns a pool with size slots. size <= 0 yields one slot.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	<-p.slots
}

// Size reports the pool capacity.
func (p *Pool) Size() int { return cap(p.slots) }

// InUse reports how many slots are currently held.
func (p *Pool) InUse() int { return len(p.slots) }
