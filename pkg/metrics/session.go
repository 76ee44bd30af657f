package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeAccepted  = "accepted"
	OutcomeThrottled = "throttled"
)

// GeocodeMetrics tracks reverse geocoding attempts per strategy.
type GeocodeMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewGeocodeMetrics(reg prometheus.Registerer) *GeocodeMetrics {
	if reg == nil {
		return &GeocodeMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_attempts_total",
		Help: "Reverse geocoding attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocode_duration_seconds",
		Help:    "Reverse geocoding latency by strategy.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 8, 10},
	}, []string{"strategy"})
	reg.MustRegister(attempts, duration)
	return &GeocodeMetrics{attempts: attempts, duration: duration}
}

// Observe records one attempt.
func (g *GeocodeMetrics) Observe(strategy string, took time.Duration, err error) {
	if g == nil || g.attempts == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	g.attempts.WithLabelValues(normalizeLabel(strategy), outcome).Inc()
	g.duration.WithLabelValues(normalizeLabel(strategy)).Observe(took.Seconds())
}

// LocationMetrics tracks watch updates and resolution outcomes.
type LocationMetrics struct {
	updates     *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

func NewLocationMetrics(reg prometheus.Registerer) *LocationMetrics {
	if reg == nil {
		return &LocationMetrics{}
	}
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "location_watch_updates_total",
		Help: "Position watch updates by throttle outcome.",
	}, []string{"outcome"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "location_resolutions_total",
		Help: "Location acquisition cycles by terminal state.",
	}, []string{"state"})
	reg.MustRegister(updates, resolutions)
	return &LocationMetrics{updates: updates, resolutions: resolutions}
}

func (l *LocationMetrics) IncUpdate(outcome string) {
	if l == nil || l.updates == nil {
		return
	}
	l.updates.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (l *LocationMetrics) IncResolution(state string) {
	if l == nil || l.resolutions == nil {
		return
	}
	l.resolutions.WithLabelValues(normalizeLabel(state)).Inc()
}

// CartMetrics counts cart mutations by operation and rejected adds by reason.
type CartMetrics struct {
	mutations *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation.",
	}, []string{"op"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_rejected_total",
		Help: "Rejected cart additions by reason.",
	}, []string{"reason"})
	reg.MustRegister(mutations, rejected)
	return &CartMetrics{mutations: mutations, rejected: rejected}
}

func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncRejected(reason string) {
	if c == nil || c.rejected == nil {
		return
	}
	c.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
