package location

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/quickbite/quickbite-backend/pkg/geo"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
	"github.com/quickbite/quickbite-backend/pkg/storage"
)

type State string

const (
	StateInit      State = "init"
	StateResolving State = "resolving"
	StateGeocoding State = "geocoding"
	StateTracking  State = "tracking"
	StateFallback  State = "fallback"
	StateFailed    State = "failed"
)

const (
	DefaultPositionTimeout   = 30 * time.Second
	DefaultInitialMaximumAge = time.Minute
	DefaultRelaxedMaximumAge = 5 * time.Minute

	recordSubscriberBuffer = 4
)

// Config tunes acquisition. Zero values fall back to the defaults above.
type Config struct {
	PositionTimeout   time.Duration
	InitialMaximumAge time.Duration
	RelaxedMaximumAge time.Duration
	MinUpdateInterval time.Duration
	MinDistanceMeters float64
	// DistanceFilter also requires MinDistanceMeters of movement between
	// accepted updates. Map-marker consumers turn it on.
	DistanceFilter bool
	CacheTTL       time.Duration
}

func (c Config) withDefaults() Config {
	if c.PositionTimeout <= 0 {
		c.PositionTimeout = DefaultPositionTimeout
	}
	if c.InitialMaximumAge <= 0 {
		c.InitialMaximumAge = DefaultInitialMaximumAge
	}
	if c.RelaxedMaximumAge <= 0 {
		c.RelaxedMaximumAge = DefaultRelaxedMaximumAge
	}
	if c.MinUpdateInterval <= 0 {
		c.MinUpdateInterval = DefaultMinUpdateInterval
	}
	if c.MinDistanceMeters <= 0 {
		c.MinDistanceMeters = DefaultMinDistanceMeters
	}
	return c
}

// Deps are the collaborators of a Service. Profile may be nil for anonymous sessions.
type Deps struct {
	SessionID  string
	Geolocator Geolocator
	Resolver   Resolver
	Profile    ProfileStore
	Storage    storage.KV
	Logger     *logger.Logger
	Metrics    *metrics.LocationMetrics
	Clock      func() time.Time
}

// Service owns the resolved location of one session.
type Service struct {
	sessionID string
	geo       Geolocator
	resolver  Resolver
	profile   ProfileStore
	kv        storage.KV
	logg      *logger.Logger
	metrics   *metrics.LocationMetrics
	now       func() time.Time
	cfg       Config

	mu          sync.Mutex
	state       State
	current     Record
	lastErr     error
	seq         uint64
	subscribers map[int]chan Record
	nextSubID   int
	trackers    map[*Tracker]struct{}
	closed      bool

	persistMu    sync.Mutex
	persistedSeq uint64
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Geolocator == nil {
		return nil, errors.New("geolocator required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("resolver required")
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		sessionID:   deps.SessionID,
		geo:         deps.Geolocator,
		resolver:    deps.Resolver,
		profile:     deps.Profile,
		kv:          deps.Storage,
		logg:        deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		cfg:         cfg.withDefaults(),
		state:       StateInit,
		current:     PlaceholderRecord(),
		subscribers: make(map[int]chan Record),
		trackers:    make(map[*Tracker]struct{}),
	}, nil
}

// Start runs one acquisition cycle: cache, then device position and geocoding,
// then the profile store and finally the placeholder. The returned error is a
// *PositionError only when no location could be produced.
func (s *Service) Start(ctx context.Context) (Record, error) {
	ctx = s.logg.WithSessionID(ctx, s.sessionID)
	if rec, ok := s.resolvedCurrent(); ok {
		s.setState(StateTracking)
		return rec, nil
	}

	s.setState(StateInit)
	if cached, ok := s.readCache(ctx); ok {
		return s.accept(ctx, cached, acceptOpts{}), nil
	}

	s.setState(StateResolving)
	pos, err := s.geo.CurrentPosition(ctx, PositionOptions{
		HighAccuracy: true,
		Timeout:      s.cfg.PositionTimeout,
		MaximumAge:   s.cfg.InitialMaximumAge,
	})
	if err != nil {
		return s.fallback(ctx, err)
	}
	return s.resolveAt(ctx, pos, false)
}

// RequestLocation forces a fresh device reading, retrying once with relaxed
// options. On success the result replaces the current record even if it is
// less specific.
func (s *Service) RequestLocation(ctx context.Context) (Record, error) {
	ctx = s.logg.WithSessionID(ctx, s.sessionID)
	s.setState(StateResolving)

	pos, err := s.geo.CurrentPosition(ctx, PositionOptions{
		HighAccuracy: true,
		Timeout:      s.cfg.PositionTimeout,
	})
	if err != nil {
		s.logg.WarnErr(ctx, "forced geolocation failed; retrying with relaxed options", err)
		pos, err = s.geo.CurrentPosition(ctx, PositionOptions{
			HighAccuracy: false,
			Timeout:      s.cfg.PositionTimeout,
			MaximumAge:   s.cfg.RelaxedMaximumAge,
		})
	}
	if err != nil {
		posErr := Classify(err)
		s.mu.Lock()
		if s.current.Resolved() {
			s.state = StateTracking
		} else {
			s.state = StateFailed
		}
		s.lastErr = posErr
		rec := s.current
		s.mu.Unlock()
		s.metrics.IncResolution(string(StateFailed))
		return rec, posErr
	}
	return s.resolveAt(ctx, pos, true)
}

func (s *Service) resolveAt(ctx context.Context, pos Position, forced bool) (Record, error) {
	s.setState(StateGeocoding)
	rec, err := s.resolver.Resolve(ctx, pos.Latitude, pos.Longitude)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.mu.Lock()
		if s.current.Resolved() {
			s.state = StateTracking
		}
		cur := s.current
		s.mu.Unlock()
		return cur, ctxErr
	}
	if err != nil {
		s.logg.WarnErr(ctx, "geocoding exhausted; using raw coordinates", err)
		rec = CoordinatesRecord(pos.Latitude, pos.Longitude)
	}
	return s.accept(ctx, rec, acceptOpts{forced: forced, persist: true, push: true}), nil
}

func (s *Service) fallback(ctx context.Context, cause error) (Record, error) {
	s.setState(StateFallback)
	posErr := Classify(cause)
	s.logg.WarnErr(s.logg.WithField(ctx, "reason", string(posErr.Kind())), "device geolocation failed; falling back", cause)

	if s.profile != nil {
		rec, err := s.profile.GetMyLocation(ctx)
		switch {
		case err != nil:
			s.logg.WarnErr(ctx, "saved profile location unavailable", err)
		case rec.Resolved():
			rec.Source = SourceProfile
			return s.accept(ctx, rec, acceptOpts{persist: true}), nil
		}
	}

	s.mu.Lock()
	if !s.current.Resolved() {
		s.current = PlaceholderRecord()
	}
	s.state = StateFailed
	s.lastErr = posErr
	rec := s.current
	s.mu.Unlock()
	s.metrics.IncResolution(string(StateFailed))
	return rec, posErr
}

type acceptOpts struct {
	forced  bool
	persist bool
	push    bool
}

// accept installs rec unless it would replace a geocoded record with a less
// specific one outside a forced refresh. It returns the record now current.
func (s *Service) accept(ctx context.Context, rec Record, opts acceptOpts) Record {
	s.mu.Lock()
	if s.closed {
		cur := s.current
		s.mu.Unlock()
		return cur
	}
	if !opts.forced && s.current.Geocoded() && !rec.Geocoded() {
		s.state = StateTracking
		cur := s.current
		s.mu.Unlock()
		s.logg.Debug(ctx, "keeping more specific location")
		return cur
	}
	if rec.UpdatedAt.IsZero() || opts.persist {
		rec.UpdatedAt = s.now()
	}
	s.current = rec
	s.state = StateTracking
	s.lastErr = nil
	s.seq++
	seq := s.seq
	for _, sub := range s.subscribers {
		select {
		case sub <- rec:
		default:
		}
	}
	s.mu.Unlock()

	s.metrics.IncResolution(string(StateTracking))
	if opts.persist {
		s.persist(ctx, rec, seq)
	}
	if opts.push {
		s.pushProfile(ctx, rec)
	}
	return rec
}

// persist writes rec to the session cache; writes older than the last one are skipped.
func (s *Service) persist(ctx context.Context, rec Record, seq uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq <= s.persistedSeq {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logg.WarnErr(ctx, "location encode failed", err)
		return
	}
	if err := s.kv.Write(context.WithoutCancel(ctx), storage.LocationKey(s.sessionID), string(payload), s.cfg.CacheTTL); err != nil {
		s.logg.WarnErr(ctx, "location cache write failed", err)
		return
	}
	s.persistedSeq = seq
}

func (s *Service) pushProfile(ctx context.Context, rec Record) {
	if s.profile == nil {
		return
	}
	if err := s.profile.UpdateMyLocation(ctx, rec); err != nil {
		s.logg.WarnErr(ctx, "profile location update failed; ignoring", err)
	}
}

func (s *Service) readCache(ctx context.Context) (Record, bool) {
	raw, found, err := s.kv.Read(ctx, storage.LocationKey(s.sessionID))
	if err != nil {
		s.logg.WarnErr(ctx, "location cache read failed", err)
		return Record{}, false
	}
	if !found || strings.TrimSpace(raw) == "" {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logg.WarnErr(ctx, "location cache malformed; ignoring", err)
		return Record{}, false
	}
	if !rec.Resolved() {
		return Record{}, false
	}
	rec.Source = SourceCache
	return rec, true
}

func (s *Service) resolvedCurrent() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current.Resolved()
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Current returns the current record; it is the placeholder until something resolves.
func (s *Service) Current() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the classified error of the last failed cycle, nil after a success.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DistanceTo returns the haversine distance in meters from the current record.
func (s *Service) DistanceTo(lat, lng float64) (float64, bool) {
	s.mu.Lock()
	from, ok := s.current.Point()
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	return geo.Haversine(from, geo.Point{Lat: lat, Lng: lng}), true
}

// Subscribe streams accepted records. Slow subscribers miss intermediate records.
func (s *Service) Subscribe() (<-chan Record, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Record, recordSubscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// StartTracking watches the device and re-resolves throttled updates until the
// tracker is disposed. The tracker outlives ctx cancellation; only Dispose or
// Close stops it.
func (s *Service) StartTracking(ctx context.Context) (*Tracker, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("location service closed")
	}

	trackCtx, cancel := context.WithCancel(context.WithoutCancel(s.logg.WithSessionID(ctx, s.sessionID)))
	updates, stop, err := s.geo.Watch(trackCtx, PositionOptions{
		HighAccuracy: true,
		Timeout:      s.cfg.PositionTimeout,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	t := newTracker(cancel, stop)
	t.onDispose = func() { s.removeTracker(t) }
	s.mu.Lock()
	s.trackers[t] = struct{}{}
	s.mu.Unlock()

	go s.track(trackCtx, t, updates)
	return t, nil
}

func (s *Service) track(ctx context.Context, t *Tracker, updates <-chan Position) {
	defer close(t.done)
	throttle := Throttle{
		MinInterval:    s.cfg.MinUpdateInterval,
		MinDistance:    s.cfg.MinDistanceMeters,
		DistanceFilter: s.cfg.DistanceFilter,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-updates:
			if !ok {
				return
			}
			at := pos.Timestamp
			if at.IsZero() {
				at = s.now()
			}
			if !throttle.Allow(geo.Point{Lat: pos.Latitude, Lng: pos.Longitude}, at) {
				s.metrics.IncUpdate(metrics.OutcomeThrottled)
				continue
			}
			s.metrics.IncUpdate(metrics.OutcomeAccepted)
			if _, err := s.resolveAt(ctx, pos, false); err != nil && ctx.Err() == nil {
				s.logg.WarnErr(ctx, "tracking update failed", err)
			}
		}
	}
}

func (s *Service) removeTracker(t *Tracker) {
	s.mu.Lock()
	delete(s.trackers, t)
	s.mu.Unlock()
}

// ActiveTrackers reports the trackers not yet disposed.
func (s *Service) ActiveTrackers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}

// Close disposes every tracker and subscription. Later updates are ignored.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	trackers := make([]*Tracker, 0, len(s.trackers))
	for t := range s.trackers {
		trackers = append(trackers, t)
	}
	s.mu.Unlock()

	for _, t := range trackers {
		t.Dispose()
	}

	s.mu.Lock()
	for id, sub := range s.subscribers {
		delete(s.subscribers, id)
		close(sub)
	}
	s.mu.Unlock()
}
