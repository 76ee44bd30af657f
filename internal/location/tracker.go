package location

import (
	"context"
	"sync"
)

// Tracker is the handle returned by StartTracking. Dispose must be called on
// teardown; it unregisters the watch and waits for the update loop to exit.
type Tracker struct {
	cancel    context.CancelFunc
	stop      func()
	done      chan struct{}
	once      sync.Once
	onDispose func()
}

func newTracker(cancel context.CancelFunc, stop func()) *Tracker {
	return &Tracker{cancel: cancel, stop: stop, done: make(chan struct{})}
}

// Dispose is idempotent. After it returns no further update reaches the service.
func (t *Tracker) Dispose() {
	t.once.Do(func() {
		t.cancel()
		if t.stop != nil {
			t.stop()
		}
		<-t.done
		if t.onDispose != nil {
			t.onDispose()
		}
	})
}

// Done is closed once the update loop has exited.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}
