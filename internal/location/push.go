package location

import (
	"context"
	"sync"
	"time"
)

const (
	watchBuffer = 8

	// PendingWindow is how long an unclaimed pushed result stays usable by a
	// read that demands a fresh fix.
	PendingWindow = 2 * time.Second
)

type fixResult struct {
	pos Position
	err error
	at  time.Time
}

// PushGeolocator is a Geolocator fed by fixes the client pushes over HTTP.
// A pushed fix waits until a CurrentPosition call consumes it, so a forced
// read can be answered by a fix that arrived just before the call. Unclaimed
// fixes older than the read's MaximumAge (or PendingWindow when that is zero)
// and unclaimed errors older than PendingWindow are discarded.
type PushGeolocator struct {
	mu       sync.Mutex
	last     *Position
	pending  *fixResult
	waiters  []chan fixResult
	watchers map[int]chan Position
	nextID   int
	now      func() time.Time
}

func NewPushGeolocator(clock func() time.Time) *PushGeolocator {
	if clock == nil {
		clock = time.Now
	}
	return &PushGeolocator{watchers: make(map[int]chan Position), now: clock}
}

// Push records a fix and fans it out to pending reads and watchers.
func (g *PushGeolocator) Push(pos Position) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pos.Timestamp.IsZero() {
		pos.Timestamp = g.now()
	}
	fix := pos
	g.last = &fix
	g.deliverLocked(fixResult{pos: pos, at: g.now()})

	for _, w := range g.watchers {
		select {
		case w <- pos:
		default:
		}
	}
}

// PushError reports a client-side geolocation failure to the next read.
func (g *PushGeolocator) PushError(code int, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deliverLocked(fixResult{err: &PositionError{Code: code, Message: message}, at: g.now()})
}

func (g *PushGeolocator) deliverLocked(res fixResult) {
	if len(g.waiters) == 0 {
		g.pending = &res
		return
	}
	for _, w := range g.waiters {
		w <- res
	}
	g.waiters = nil
	g.pending = nil
}

func (g *PushGeolocator) CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error) {
	g.mu.Lock()
	if res, ok := g.takePendingLocked(opts.MaximumAge); ok {
		g.mu.Unlock()
		return res.pos, res.err
	}
	if opts.MaximumAge > 0 && g.last != nil && g.now().Sub(g.last.Timestamp) <= opts.MaximumAge {
		pos := *g.last
		g.mu.Unlock()
		return pos, nil
	}
	waiter := make(chan fixResult, 1)
	g.waiters = append(g.waiters, waiter)
	g.mu.Unlock()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-waiter:
		return res.pos, res.err
	case <-timeout:
		if res, ok := g.abandon(waiter); ok {
			return res.pos, res.err
		}
		return Position{}, &PositionError{Code: CodeTimeout, Message: "no position received before timeout"}
	case <-ctx.Done():
		if res, ok := g.abandon(waiter); ok {
			return res.pos, res.err
		}
		return Position{}, ctx.Err()
	}
}

// takePendingLocked consumes the pending result when it is still fresh enough
// for a read accepting fixes up to maxAge old. A stale one is dropped.
func (g *PushGeolocator) takePendingLocked(maxAge time.Duration) (fixResult, bool) {
	if g.pending == nil {
		return fixResult{}, false
	}
	res := *g.pending
	g.pending = nil
	now := g.now()
	if res.err != nil {
		return res, now.Sub(res.at) <= PendingWindow
	}
	if maxAge < PendingWindow {
		maxAge = PendingWindow
	}
	return res, now.Sub(res.pos.Timestamp) <= maxAge
}

// abandon unregisters waiter; a result delivered in the meantime is returned.
func (g *PushGeolocator) abandon(waiter chan fixResult) (fixResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, w := range g.waiters {
		if w == waiter {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return fixResult{}, false
		}
	}
	select {
	case res := <-waiter:
		return res, true
	default:
		return fixResult{}, false
	}
}

func (g *PushGeolocator) Watch(ctx context.Context, _ PositionOptions) (<-chan Position, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	ch := make(chan Position, watchBuffer)
	g.watchers[id] = ch
	g.mu.Unlock()

	var once sync.Once
	unregister := func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if w, ok := g.watchers[id]; ok {
				delete(g.watchers, id)
				close(w)
			}
		})
	}
	stopAfter := context.AfterFunc(ctx, unregister)
	return ch, func() {
		stopAfter()
		unregister()
	}, nil
}

// Watchers reports the number of active watch subscriptions.
func (g *PushGeolocator) Watchers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.watchers)
}
