package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quickbite/quickbite-backend/pkg/geo"
)

// offsetNorth moves p roughly meters north.
func offsetNorth(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: p.Lat + meters/111195.0, Lng: p.Lng}
}

func TestThrottleRequiresIntervalAndDistance(t *testing.T) {
	origin := geo.Point{Lat: 22.71, Lng: 75.86}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th := Throttle{MinInterval: 2 * time.Second, MinDistance: 10, DistanceFilter: true}

	steps := []struct {
		name  string
		point geo.Point
		at    time.Duration
		want  bool
	}{
		{"first update always passes", origin, 0, true},
		{"too soon and too close", offsetNorth(origin, 5), 500 * time.Millisecond, false},
		{"far but too soon", offsetNorth(origin, 200), 1500 * time.Millisecond, false},
		{"late but too close", offsetNorth(origin, 4), 2500 * time.Millisecond, false},
		{"late and far", offsetNorth(origin, 50), 3 * time.Second, true},
		{"interval counts from last accepted", offsetNorth(origin, 300), 4 * time.Second, false},
		{"next window", offsetNorth(origin, 300), 5 * time.Second, true},
	}
	for _, step := range steps {
		assert.Equal(t, step.want, th.Allow(step.point, t0.Add(step.at)), step.name)
	}
}

func TestThrottleWithoutDistanceFilter(t *testing.T) {
	origin := geo.Point{Lat: 22.71, Lng: 75.86}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th := Throttle{MinInterval: 2 * time.Second, MinDistance: 10}

	assert.True(t, th.Allow(origin, t0))
	assert.False(t, th.Allow(origin, t0.Add(time.Second)))
	assert.True(t, th.Allow(origin, t0.Add(2*time.Second)))
}
