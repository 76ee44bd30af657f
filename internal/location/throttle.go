package location

import (
	"time"

	"github.com/quickbite/quickbite-backend/pkg/geo"
)

const (
	DefaultMinUpdateInterval = 2 * time.Second
	DefaultMinDistanceMeters = 10.0
)

// Throttle decides whether a watch update is worth a new resolution. An
// update passes only when MinInterval has elapsed since the last accepted one
// and, with DistanceFilter on, it moved at least MinDistance meters.
type Throttle struct {
	MinInterval    time.Duration
	MinDistance    float64
	DistanceFilter bool

	last     geo.Point
	lastAt   time.Time
	accepted bool
}

// Allow reports whether p observed at "at" passes, recording it when it does.
func (t *Throttle) Allow(p geo.Point, at time.Time) bool {
	if !t.accepted {
		t.accept(p, at)
		return true
	}
	if at.Sub(t.lastAt) < t.MinInterval {
		return false
	}
	if t.DistanceFilter && geo.Haversine(t.last, p) < t.MinDistance {
		return false
	}
	t.accept(p, at)
	return true
}

func (t *Throttle) accept(p geo.Point, at time.Time) {
	t.last = p
	t.lastAt = at
	t.accepted = true
}
