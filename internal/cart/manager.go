package cart

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

// ManagerOptions are shared by every Store the manager creates.
type ManagerOptions struct {
	Storage    storage.KV
	Logger     *logger.Logger
	Metrics    *metrics.CartMetrics
	EventTTL   time.Duration
	StorageTTL time.Duration
	Clock      func() time.Time
}

// Manager owns one Store per session so every consumer of a session shares
// the same cart.
type Manager struct {
	mu     sync.Mutex
	opts   ManagerOptions
	stores map[string]*Store
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Storage == nil {
		opts.Storage = storage.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{opts: opts, stores: make(map[string]*Store)}
}

// Get returns the session's store, loading persisted items on first use.
// Every lookup counts as activity for EvictIdle.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	m.mu.Lock()
	store, ok := m.stores[sessionID]
	if !ok {
		store = NewStore(Options{
			SessionID:  sessionID,
			Storage:    m.opts.Storage,
			Logger:     m.opts.Logger,
			Metrics:    m.opts.Metrics,
			EventTTL:   m.opts.EventTTL,
			StorageTTL: m.opts.StorageTTL,
			Clock:      m.opts.Clock,
		})
		m.stores[sessionID] = store
	}
	m.mu.Unlock()

	store.ensureLoaded(ctx)
	store.markAccessed()
	return store, nil
}

// EvictIdle drops stores not looked up or mutated for longer than idle. Their items are
// already persisted, so a later Get reloads them.
func (m *Manager) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := m.opts.Clock().Add(-idle)

	m.mu.Lock()
	var evicted []*Store
	for id, store := range m.stores {
		if store.LastAccess().Before(cutoff) {
			evicted = append(evicted, store)
			delete(m.stores, id)
		}
	}
	m.mu.Unlock()

	for _, store := range evicted {
		store.closeSubscribers()
	}
	if len(evicted) > 0 {
		m.opts.Logger.Debug(m.opts.Logger.WithField(ctx, "evicted", len(evicted)), "evicted idle carts")
	}
	return len(evicted)
}

// Len reports how many sessions currently hold a store.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}
