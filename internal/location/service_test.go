package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/quickbite-backend/pkg/storage"
)

type scriptedGeolocator struct {
	mu      sync.Mutex
	results []fixResult
	calls   []PositionOptions
}

func (g *scriptedGeolocator) CurrentPosition(_ context.Context, opts PositionOptions) (Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, opts)
	if len(g.results) == 0 {
		return Position{}, &PositionError{Code: CodePositionUnavailable}
	}
	res := g.results[0]
	g.results = g.results[1:]
	return res.pos, res.err
}

func (g *scriptedGeolocator) Watch(context.Context, PositionOptions) (<-chan Position, func(), error) {
	return nil, nil, errors.New("watch not supported")
}

func (g *scriptedGeolocator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeProfile struct {
	mu        sync.Mutex
	rec       Record
	getErr    error
	updateErr error
	updates   []Record
}

func (p *fakeProfile) GetMyLocation(context.Context) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec, p.getErr
}

func (p *fakeProfile) UpdateMyLocation(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, rec)
	return p.updateErr
}

func (p *fakeProfile) updateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

// countingResolver geocodes every fix to a numbered city.
type countingResolver struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (c *countingResolver) Name() string { return SourceBackend }

func (c *countingResolver) Resolve(_ context.Context, lat, lng float64) (Record, error) {
	n := c.calls.Add(1)
	if c.fail.Load() {
		return Record{}, errors.New("geocoder down")
	}
	return Record{City: fmt.Sprintf("City %d", n), State: "Madhya Pradesh"}.at(lat, lng), nil
}

func newTestService(t *testing.T, deps Deps, cfg Config) *Service {
	t.Helper()
	if deps.SessionID == "" {
		deps.SessionID = "sess-1"
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory()
	}
	svc, err := NewService(deps, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceStartsWithPlaceholder(t *testing.T) {
	svc := newTestService(t, Deps{Geolocator: NewPushGeolocator(nil), Resolver: CoordinatesResolver{}}, Config{})
	rec := svc.Current()
	assert.Equal(t, PlaceholderAddress, rec.Address)
	assert.False(t, rec.Resolved())
	assert.Equal(t, StateInit, svc.State())
}

func TestServiceResolvesViaDirectWhenBackendTimesOut(t *testing.T) {
	var order callLog

	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order.add(SourceBackend)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(backend.Close)
	t.Cleanup(func() { close(release) })

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order.add(SourceDirect)
		assert.Equal(t, "22.71", r.URL.Query().Get("latitude"))
		assert.Equal(t, "75.86", r.URL.Query().Get("longitude"))
		fmt.Fprint(w, `{"city":"Indore","principalSubdivision":"Madhya Pradesh","countryName":"India"}`)
	}))
	t.Cleanup(direct.Close)

	chain := NewChain(nil, nil,
		NewBackendResolver(backend.URL, 50*time.Millisecond),
		NewDirectResolver(direct.URL+"/data/reverse-geocode-client?latitude={lat}&longitude={lng}", time.Second, nil),
		CoordinatesResolver{},
	)
	kv := storage.NewMemory()
	g := NewPushGeolocator(nil)
	g.Push(Position{Latitude: 22.71, Longitude: 75.86})

	svc := newTestService(t, Deps{SessionID: "indore", Geolocator: g, Resolver: chain, Storage: kv}, Config{})
	rec, err := svc.Start(context.Background())
	require.NoError(t, err)

	require.True(t, rec.Resolved())
	assert.Equal(t, 22.71, *rec.Latitude)
	assert.Equal(t, 75.86, *rec.Longitude)
	assert.Equal(t, "Indore", rec.City)
	assert.Equal(t, "Madhya Pradesh", rec.State)
	assert.Equal(t, SourceDirect, rec.Source)
	assert.Equal(t, []string{SourceBackend, SourceDirect}, order.list())
	assert.Equal(t, StateTracking, svc.State())

	raw, found, err := kv.Read(context.Background(), storage.LocationKey("indore"))
	require.NoError(t, err)
	require.True(t, found)
	var stored Record
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "Indore", stored.City)
	assert.Equal(t, "Madhya Pradesh", stored.State)
	assert.Equal(t, 22.71, *stored.Latitude)
	assert.Equal(t, 75.86, *stored.Longitude)
}

func TestServiceStartUsesCacheFirst(t *testing.T) {
	kv := storage.NewMemory()
	cached := NewRecord(23.25, 77.41)
	cached.City = "Bhopal"
	cached.Source = SourceDirect
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, kv.Write(context.Background(), storage.LocationKey("sess-1"), string(payload), 0))

	g := &scriptedGeolocator{}
	resolver := &countingResolver{}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: resolver, Storage: kv}, Config{})

	rec, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bhopal", rec.City)
	assert.Equal(t, SourceCache, rec.Source)
	assert.Equal(t, 0, g.callCount())
	assert.Zero(t, resolver.calls.Load())

	// a second start reuses the resolved record
	_, err = svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, g.callCount())
}

func TestServiceIgnoresMalformedCache(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Write(context.Background(), storage.LocationKey("sess-1"), "{broken", 0))

	g := &scriptedGeolocator{results: []fixResult{{pos: Position{Latitude: 1, Longitude: 2}}}}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}, Storage: kv}, Config{})

	rec, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "City 1", rec.City)
	require.Len(t, g.calls, 1)
	assert.True(t, g.calls[0].HighAccuracy)
	assert.Equal(t, DefaultInitialMaximumAge, g.calls[0].MaximumAge)
	assert.Equal(t, DefaultPositionTimeout, g.calls[0].Timeout)
}

func TestServiceFallsBackToProfile(t *testing.T) {
	g := &scriptedGeolocator{results: []fixResult{{err: &PositionError{Code: CodePermissionDenied}}}}
	saved := NewRecord(18.52, 73.85)
	saved.City = "Pune"
	profile := &fakeProfile{rec: saved}
	kv := storage.NewMemory()
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}, Profile: profile, Storage: kv}, Config{})

	rec, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pune", rec.City)
	assert.Equal(t, SourceProfile, rec.Source)
	assert.Nil(t, svc.LastError())
	// the profile already holds this record
	assert.Equal(t, 0, profile.updateCount())

	_, found, _ := kv.Read(context.Background(), storage.LocationKey("sess-1"))
	assert.True(t, found)
}

func TestServiceFallsBackToPlaceholder(t *testing.T) {
	cases := map[string]struct {
		profile ProfileStore
		cause   error
		kind    ErrorKind
	}{
		"no profile":           {cause: &PositionError{Code: CodePermissionDenied}, kind: KindPermissionDenied},
		"profile error":        {profile: &fakeProfile{getErr: errors.New("unauthorized")}, cause: &PositionError{Code: CodeTimeout}, kind: KindTimeout},
		"profile without fix":  {profile: &fakeProfile{}, cause: &PositionError{Code: CodePositionUnavailable}, kind: KindPositionUnavailable},
		"unclassified failure": {cause: errors.New("sensor offline"), kind: KindUnknown},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g := &scriptedGeolocator{results: []fixResult{{err: tc.cause}}}
			svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}, Profile: tc.profile}, Config{})

			rec, err := svc.Start(context.Background())
			var posErr *PositionError
			require.ErrorAs(t, err, &posErr)
			assert.Equal(t, tc.kind, posErr.Kind())
			assert.Equal(t, PlaceholderAddress, rec.Address)
			assert.Equal(t, StateFailed, svc.State())
			assert.Equal(t, posErr, svc.LastError())
		})
	}
}

func TestServiceProfilePushFailureIsIgnored(t *testing.T) {
	g := &scriptedGeolocator{results: []fixResult{{pos: Position{Latitude: 22.71, Longitude: 75.86}}}}
	profile := &fakeProfile{updateErr: errors.New("503")}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}, Profile: profile}, Config{})

	rec, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "City 1", rec.City)
	assert.Equal(t, 1, profile.updateCount())
	assert.Equal(t, StateTracking, svc.State())
}

func TestServiceRequestLocationRetriesRelaxed(t *testing.T) {
	g := &scriptedGeolocator{results: []fixResult{
		{err: &PositionError{Code: CodeTimeout}},
		{pos: Position{Latitude: 22.72, Longitude: 75.87}},
	}}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}}, Config{})

	rec, err := svc.RequestLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 22.72, *rec.Latitude)

	require.Len(t, g.calls, 2)
	assert.True(t, g.calls[0].HighAccuracy)
	assert.Zero(t, g.calls[0].MaximumAge)
	assert.False(t, g.calls[1].HighAccuracy)
	assert.Equal(t, DefaultRelaxedMaximumAge, g.calls[1].MaximumAge)
}

func TestServiceRequestLocationFailureKeepsCurrent(t *testing.T) {
	g := &scriptedGeolocator{results: []fixResult{
		{pos: Position{Latitude: 22.71, Longitude: 75.86}},
		{err: &PositionError{Code: CodePermissionDenied, Message: "denied"}},
		{err: &PositionError{Code: CodePermissionDenied, Message: "denied"}},
	}}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}}, Config{})

	first, err := svc.Start(context.Background())
	require.NoError(t, err)

	rec, err := svc.RequestLocation(context.Background())
	var posErr *PositionError
	require.ErrorAs(t, err, &posErr)
	assert.Equal(t, KindPermissionDenied, posErr.Kind())
	assert.Equal(t, first, rec)
	assert.Equal(t, StateTracking, svc.State())
}

func TestServiceRequestLocationIgnoresStaleFix(t *testing.T) {
	g := NewPushGeolocator(nil)
	g.Push(Position{Latitude: 10, Longitude: 20, Timestamp: time.Now().Add(-time.Hour)})
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}}, Config{PositionTimeout: 20 * time.Millisecond})

	rec, err := svc.RequestLocation(context.Background())
	var posErr *PositionError
	require.ErrorAs(t, err, &posErr)
	assert.Equal(t, KindTimeout, posErr.Kind())
	assert.False(t, rec.Resolved())
	assert.Equal(t, StateFailed, svc.State())
}

func TestServiceStartWaitsPastStaleError(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	g := NewPushGeolocator(clock.Now)
	g.PushError(CodePermissionDenied, "denied yesterday")
	clock.Advance(24 * time.Hour)
	svc := newTestService(t, Deps{Geolocator: g, Resolver: CoordinatesResolver{}}, Config{PositionTimeout: 2 * time.Second})

	go func() {
		assert.Eventually(t, func() bool {
			g.mu.Lock()
			defer g.mu.Unlock()
			return len(g.waiters) == 1
		}, time.Second, 5*time.Millisecond)
		g.Push(Position{Latitude: 22.71, Longitude: 75.86})
	}()

	rec, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.True(t, rec.Resolved())
	assert.Equal(t, 22.71, *rec.Latitude)
}

func TestServiceNeverRegressesWithoutForce(t *testing.T) {
	g := &scriptedGeolocator{results: []fixResult{
		{pos: Position{Latitude: 22.71, Longitude: 75.86}},
		{pos: Position{Latitude: 22.80, Longitude: 75.90}},
	}}
	resolver := &countingResolver{}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: NewChain(nil, nil, resolver, CoordinatesResolver{})}, Config{})

	geocoded, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.True(t, geocoded.Geocoded())

	resolver.fail.Store(true)
	rec, err := svc.resolveAt(context.Background(), Position{Latitude: 22.75, Longitude: 75.88}, false)
	require.NoError(t, err)
	assert.Equal(t, geocoded, rec)
	assert.Equal(t, geocoded, svc.Current())

	rec, err = svc.RequestLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceCoordinates, rec.Source)
	assert.Equal(t, "22.800000, 75.900000", rec.Address)
	assert.Equal(t, rec, svc.Current())
}

func TestServiceResolveStopsOnCancelledContext(t *testing.T) {
	svc := newTestService(t, Deps{Geolocator: &scriptedGeolocator{}, Resolver: &countingResolver{}}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := svc.resolveAt(ctx, Position{Latitude: 1, Longitude: 2}, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, rec.Resolved())
	assert.False(t, svc.Current().Resolved())
}

func TestServiceSubscribeAndDistance(t *testing.T) {
	g := &scriptedGeolocator{results: []fixResult{{pos: Position{Latitude: 22.7196, Longitude: 75.8577}}}}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}}, Config{})

	_, ok := svc.DistanceTo(23.2599, 77.4126)
	assert.False(t, ok)

	updates, unsubscribe := svc.Subscribe()
	_, err := svc.Start(context.Background())
	require.NoError(t, err)

	select {
	case rec := <-updates:
		assert.Equal(t, "City 1", rec.City)
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified")
	}
	unsubscribe()
	unsubscribe()
	_, open := <-updates
	assert.False(t, open)

	d, ok := svc.DistanceTo(23.2599, 77.4126)
	require.True(t, ok)
	assert.InDelta(t, 170100, d, 1500)
}

func awaitRecord(t *testing.T, updates <-chan Record, city string) Record {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case rec := <-updates:
			if rec.City == city {
				return rec
			}
		case <-deadline:
			t.Fatalf("no record for %s", city)
			return Record{}
		}
	}
}

func TestServiceTrackingThrottlesUpdates(t *testing.T) {
	cases := map[string]struct {
		cfg     Config
		wantLat float64
	}{
		"interval only":   {cfg: Config{}, wantLat: 3},
		"distance filter": {cfg: Config{DistanceFilter: true}, wantLat: 60},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewPushGeolocator(nil)
			resolver := &countingResolver{}
			svc := newTestService(t, Deps{Geolocator: g, Resolver: resolver}, tc.cfg)
			updates, unsubscribe := svc.Subscribe()
			defer unsubscribe()

			tracker, err := svc.StartTracking(context.Background())
			require.NoError(t, err)
			defer tracker.Dispose()
			assert.Equal(t, 1, svc.ActiveTrackers())

			t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			lat, lng := 22.71, 75.86
			meters := func(m float64) float64 { return lat + m/111195.0 }

			g.Push(Position{Latitude: lat, Longitude: lng, Timestamp: t0})
			awaitRecord(t, updates, "City 1")

			g.Push(Position{Latitude: meters(5), Longitude: lng, Timestamp: t0.Add(500 * time.Millisecond)})
			g.Push(Position{Latitude: meters(300), Longitude: lng, Timestamp: t0.Add(time.Second)})
			g.Push(Position{Latitude: meters(3), Longitude: lng, Timestamp: t0.Add(2500 * time.Millisecond)})
			g.Push(Position{Latitude: meters(60), Longitude: lng, Timestamp: t0.Add(3 * time.Second)})

			rec := awaitRecord(t, updates, "City 2")
			assert.InDelta(t, meters(tc.wantLat), *rec.Latitude, 1e-9)
			assert.Equal(t, int32(2), resolver.calls.Load())
		})
	}
}

func TestTrackerDisposeStopsUpdates(t *testing.T) {
	g := NewPushGeolocator(nil)
	resolver := &countingResolver{}
	svc := newTestService(t, Deps{Geolocator: g, Resolver: resolver}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	tracker, err := svc.StartTracking(ctx)
	require.NoError(t, err)

	// the tracker is not bound to the caller's context
	cancel()
	g.Push(Position{Latitude: 22.71, Longitude: 75.86})
	require.Eventually(t, func() bool { return svc.Current().Resolved() }, 2*time.Second, 5*time.Millisecond)

	tracker.Dispose()
	tracker.Dispose()
	select {
	case <-tracker.Done():
	default:
		t.Fatal("tracker loop still running after dispose")
	}
	assert.Equal(t, 0, g.Watchers())
	assert.Equal(t, 0, svc.ActiveTrackers())

	before := svc.Current()
	g.Push(Position{Latitude: 23.25, Longitude: 77.41, Timestamp: time.Now().Add(time.Minute)})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, svc.Current())
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestServiceCloseDisposesTrackers(t *testing.T) {
	g := NewPushGeolocator(nil)
	svc := newTestService(t, Deps{Geolocator: g, Resolver: &countingResolver{}}, Config{})

	tracker, err := svc.StartTracking(context.Background())
	require.NoError(t, err)
	updates, _ := svc.Subscribe()

	svc.Close()
	<-tracker.Done()
	assert.Equal(t, 0, g.Watchers())
	_, open := <-updates
	assert.False(t, open)

	_, err = svc.StartTracking(context.Background())
	assert.Error(t, err)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Deps{Resolver: CoordinatesResolver{}}, Config{})
	assert.Error(t, err)
	_, err = NewService(Deps{Geolocator: NewPushGeolocator(nil)}, Config{})
	assert.Error(t, err)
}
