package location

import (
	"context"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
	"github.com/quickbite/quickbite-backend/pkg/storage"
)

// ManagerOptions are shared by every session the manager creates.
type ManagerOptions struct {
	Resolver Resolver
	Storage  storage.KV
	Logger   *logger.Logger
	Metrics  *metrics.LocationMetrics
	Config   Config
	Clock    func() time.Time
	// ProfileFor returns the profile store of a signed-in user, or nil.
	ProfileFor func(userID string) ProfileStore
}

// Session pairs a session's Service with the geolocator its client feeds.
type Session struct {
	Service    *Service
	Geolocator *PushGeolocator

	mu         sync.Mutex
	lastAccess time.Time
	tracker    *Tracker
}

// StartTracking starts the session's tracker unless one is already running.
// started is false when an existing tracker was kept.
func (s *Session) StartTracking(ctx context.Context) (started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracker != nil {
		select {
		case <-s.tracker.Done():
		default:
			return false, nil
		}
	}
	t, err := s.Service.StartTracking(ctx)
	if err != nil {
		return false, err
	}
	s.tracker = t
	return true, nil
}

// StopTracking disposes the running tracker and reports whether there was one.
func (s *Session) StopTracking() bool {
	s.mu.Lock()
	t := s.tracker
	s.tracker = nil
	s.mu.Unlock()
	if t == nil {
		return false
	}
	t.Dispose()
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Manager owns one Session per session id.
type Manager struct {
	mu       sync.Mutex
	opts     ManagerOptions
	sessions map[string]*Session
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Resolver == nil {
		opts.Resolver = CoordinatesResolver{}
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Get returns the session, creating it on first use. userID binds the profile
// store when the caller is signed in.
func (m *Manager) Get(sessionID, userID string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	now := m.opts.Clock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.touch(now)
		return sess, nil
	}

	var profile ProfileStore
	if userID != "" && m.opts.ProfileFor != nil {
		profile = m.opts.ProfileFor(userID)
	}
	geolocator := NewPushGeolocator(m.opts.Clock)
	svc, err := NewService(Deps{
		SessionID:  sessionID,
		Geolocator: geolocator,
		Resolver:   m.opts.Resolver,
		Profile:    profile,
		Storage:    m.opts.Storage,
		Logger:     m.opts.Logger,
		Metrics:    m.opts.Metrics,
		Clock:      m.opts.Clock,
	}, m.opts.Config)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create location service")
	}
	sess := &Session{Service: svc, Geolocator: geolocator, lastAccess: now}
	m.sessions[sessionID] = sess
	return sess, nil
}

// EvictIdle closes sessions untouched for longer than idle, disposing their
// trackers, and returns how many were dropped. Pushed fixes count as activity.
func (m *Manager) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := m.opts.Clock().Add(-idle)

	m.mu.Lock()
	var evicted []*Session
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			evicted = append(evicted, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range evicted {
		sess.Service.Close()
	}
	if len(evicted) > 0 {
		m.opts.Logger.Debug(m.opts.Logger.WithField(ctx, "evicted", len(evicted)), "evicted idle location sessions")
	}
	return len(evicted)
}

// Close disposes every session's trackers.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.Service.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
