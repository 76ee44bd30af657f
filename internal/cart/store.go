package cart

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
	"github.com/quickbite/quickbite-backend/pkg/storage"
)

const (
	DefaultEventTTL   = 1500 * time.Millisecond
	DefaultStorageTTL = 30 * 24 * time.Hour

	subscriberBuffer = 16
)

// Options configure a Store.
type Options struct {
	SessionID  string
	Storage    storage.KV
	Logger     *logger.Logger
	Metrics    *metrics.CartMetrics
	EventTTL   time.Duration
	StorageTTL time.Duration
	Clock      func() time.Time
}

// Store is the authoritative cart for one session. Every mutation runs under
// the store mutex and a rejected mutation leaves the items untouched.
type Store struct {
	mu          sync.Mutex
	sessionID   string
	kv          storage.KV
	logg        *logger.Logger
	metrics     *metrics.CartMetrics
	eventTTL    time.Duration
	storageTTL  time.Duration
	now         func() time.Time
	items       []LineItem
	events      []AnimationEvent
	subscribers map[int]chan AnimationEvent
	nextSubID   int
	lastAccess  time.Time
	loadOnce    sync.Once
}

func NewStore(opts Options) *Store {
	s := &Store{
		sessionID:   opts.SessionID,
		kv:          opts.Storage,
		logg:        opts.Logger,
		metrics:     opts.Metrics,
		eventTTL:    opts.EventTTL,
		storageTTL:  opts.StorageTTL,
		now:         opts.Clock,
		subscribers: make(map[int]chan AnimationEvent),
	}
	if s.kv == nil {
		s.kv = storage.NewMemory()
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.eventTTL <= 0 {
		s.eventTTL = DefaultEventTTL
	}
	if s.storageTTL < 0 {
		s.storageTTL = 0
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastAccess = s.now()
	return s
}

// Load replaces the in-memory items with the persisted ones. Missing or
// malformed data yields an empty cart.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.readPersisted(ctx)
}

func (s *Store) ensureLoaded(ctx context.Context) {
	s.loadOnce.Do(func() { s.Load(ctx) })
}

func (s *Store) readPersisted(ctx context.Context) []LineItem {
	ctx = s.logg.WithSessionID(ctx, s.sessionID)
	raw, found, err := s.kv.Read(ctx, storage.CartKey(s.sessionID))
	if err != nil {
		s.logg.WarnErr(ctx, "cart read failed; starting empty", err)
		return nil
	}
	if !found || strings.TrimSpace(raw) == "" {
		return nil
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logg.WarnErr(ctx, "cart data malformed; starting empty", err)
		return nil
	}
	clean := make([]LineItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID == "" || item.Quantity <= 0 {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		clean = append(clean, item)
	}
	return clean
}

// persist must be called with s.mu held. Failures are logged and swallowed.
func (s *Store) persist(ctx context.Context) {
	items := s.items
	if items == nil {
		items = []LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		s.logg.WarnErr(ctx, "cart encode failed", err)
		return
	}
	writeCtx := context.WithoutCancel(ctx)
	if err := s.kv.Write(writeCtx, storage.CartKey(s.sessionID), string(payload), s.storageTTL); err != nil {
		s.logg.WarnErr(s.logg.WithSessionID(writeCtx, s.sessionID), "cart persist failed; keeping in-memory cart", err)
	}
}

// AddToCart adds one unit of item. The first add of an id inserts a line with
// quantity 1, later adds increment it.
func (s *Store) AddToCart(ctx context.Context, item LineItem, source *Position) error {
	if strings.TrimSpace(item.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !item.hasRestaurant() {
		s.metrics.IncRejected("missing_restaurant")
		return missingRestaurantError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.items) > 0 {
		if current := s.restaurantLocked(); !sameRestaurant(current, item) {
			s.metrics.IncRejected("restaurant_mismatch")
			return mismatchError(current, item)
		}
	}

	var added LineItem
	if idx := s.indexLocked(item.ID); idx >= 0 {
		s.items[idx].Quantity++
		added = s.items[idx]
	} else {
		item.Quantity = 1
		s.items = append(s.items, item)
		added = item
	}

	if source != nil {
		s.emitLocked(EventAdded, added, *source)
	}
	s.metrics.IncMutation("add")
	s.persist(ctx)
	return nil
}

// RemoveFromCart drops the line with id. Removing an absent id is a no-op.
// info describes the product for the animation event when the line is absent.
func (s *Store) RemoveFromCart(ctx context.Context, id string, source *Position, info *LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.removeLocked(ctx, id, source, info)
}

func (s *Store) removeLocked(ctx context.Context, id string, source *Position, info *LineItem) {
	idx := s.indexLocked(id)
	var product *LineItem
	if idx >= 0 {
		removed := s.items[idx]
		product = &removed
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	} else if info != nil {
		product = info
	}

	if source != nil && product != nil {
		s.emitLocked(EventRemoved, *product, *source)
	}
	if idx < 0 {
		return
	}
	s.metrics.IncMutation("remove")
	s.persist(ctx)
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes it. A decrease with a source emits a removed event even though
// the line stays. info is only consulted when the update removes an absent line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int, source *Position, info *LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if quantity <= 0 {
		s.removeLocked(ctx, id, source, info)
		return
	}

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	previous := s.items[idx].Quantity
	s.items[idx].Quantity = quantity

	if quantity < previous && source != nil {
		s.emitLocked(EventRemoved, s.items[idx], *source)
	}
	s.metrics.IncMutation("update")
	s.persist(ctx)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.items = nil
	s.metrics.IncMutation("clear")
	s.persist(ctx)
}

// Count is the total number of units, not lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *Store) countLocked() int {
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

func (s *Store) IsInCart(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

func (s *Store) Item(id string) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.items[idx], true
	}
	return LineItem{}, false
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

func (s *Store) itemsLocked() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtotalLocked()
}

func (s *Store) subtotalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Restaurant reports the restaurant the cart is bound to; ok is false for an empty cart.
func (s *Store) Restaurant() (Restaurant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return Restaurant{}, false
	}
	return s.restaurantLocked(), true
}

func (s *Store) restaurantLocked() Restaurant {
	var r Restaurant
	for _, item := range s.items {
		if r.Name == "" && strings.TrimSpace(item.Restaurant) != "" {
			r.Name = item.Restaurant
		}
		if r.ID == "" && strings.TrimSpace(item.RestaurantID) != "" {
			r.ID = item.RestaurantID
		}
		if r.Name != "" && r.ID != "" {
			break
		}
	}
	return r
}

// Snapshot is a consistent read of the whole cart.
type Snapshot struct {
	Items      []LineItem       `json:"items"`
	Count      int              `json:"count"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Restaurant *Restaurant      `json:"restaurant,omitempty"`
	Events     []AnimationEvent `json:"events"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Items:    s.itemsLocked(),
		Count:    s.countLocked(),
		Subtotal: s.subtotalLocked(),
		Events:   s.activeEventsLocked(),
	}
	if len(s.items) > 0 {
		r := s.restaurantLocked()
		snap.Restaurant = &r
	}
	return snap
}

// ActiveEvents returns the animation events that have not expired yet.
func (s *Store) ActiveEvents() []AnimationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeEventsLocked()
}

func (s *Store) activeEventsLocked() []AnimationEvent {
	now := s.now()
	kept := s.events[:0]
	for _, ev := range s.events {
		if !ev.expired(now) {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	out := make([]AnimationEvent, len(kept))
	copy(out, kept)
	return out
}

// Events subscribes to animation events. Slow subscribers miss events rather
// than block mutations. The returned func unsubscribes.
func (s *Store) Events() (<-chan AnimationEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan AnimationEvent, subscriberBuffer)
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

// LastAccess is the time of the most recent mutation or manager lookup.
func (s *Store) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Store) emitLocked(kind EventKind, product LineItem, source Position) {
	now := s.now()
	ev := AnimationEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Product:   product,
		Source:    source,
		CreatedAt: now,
		ExpiresAt: now.Add(s.eventTTL),
	}
	s.activeEventsLocked()
	s.events = append(s.events, ev)
	for _, sub := range s.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (s *Store) indexLocked(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) touch() {
	s.lastAccess = s.now()
}

func (s *Store) markAccessed() {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
}

// closeSubscribers is used when the manager evicts the store.
func (s *Store) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subscribers {
		delete(s.subscribers, id)
		close(sub)
	}
}
