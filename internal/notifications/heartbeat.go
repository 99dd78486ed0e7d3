package notifications

import (
	"context"
	"sync"
	"time"
)

// DefaultHeartbeatInterval is the period between "still working" events.
const DefaultHeartbeatInterval = 10 * time.Second

// StartHeartbeat calls emit every interval until the returned stop function is
// called or ctx ends. stop cancels the ticker and waits for the loop to exit,
// so no emit runs after stop returns. stop is safe to call more than once.
func StartHeartbeat(ctx context.Context, interval time.Duration, emit func(context.Context)) (stop func()) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	hbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if hbCtx.Err() != nil {
					return
				}
				emit(hbCtx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
