package testsupport

import (
	"context"
	"sync"

	"studai/internal/notifications"
)

// Recorder is a progress destination that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []notifications.Event
	done   chan struct{}
	once   sync.Once
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{done: make(chan struct{})}
}

func (r *Recorder) Kind() string { return "recorder" }

func (r *Recorder) Send(_ context.Context, event notifications.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if event.Stage.Terminal() {
		r.once.Do(func() { close(r.done) })
	}
	return nil
}

// Done is closed after the first terminal event.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

// Stages returns the recorded stages in order, skipping heartbeats.
func (r *Recorder) Stages() []notifications.Stage {
	var out []notifications.Stage
	for _, event := range r.Events() {
		if event.Stage == notifications.StageVideoRendering {
			continue
		}
		out = append(out, event.Stage)
	}
	return out
}
