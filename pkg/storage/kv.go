// Package storage holds the session key-value contract used for cart and
// location persistence, plus an in-process implementation.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const keyNamespace = "qb"

// KV is a string key-value store. Read reports found=false for a missing key.
type KV interface {
	Read(ctx context.Context, key string) (value string, found bool, err error)
	Write(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Key joins non-empty parts under the service namespace.
func Key(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}

// CartKey is where a session's cart items live.
func CartKey(sessionID string) string {
	return Key("cart", sessionID)
}

// LocationKey is where a session's last resolved location lives.
func LocationKey(sessionID string) string {
	return Key("location", sessionID)
}

// GeocodeKey rounds coordinates to four decimals (~11m) so nearby lookups share an entry.
func GeocodeKey(lat, lng float64) string {
	return Key("geocode", fmt.Sprintf("%.4f", lat), fmt.Sprintf("%.4f", lng))
}

// SessionKey marks an issued session as active.
func SessionKey(sessionID string) string {
	return Key("session", sessionID)
}

// RateLimitKey names a fixed-window counter.
func RateLimitKey(scope string) string {
	return Key("rate_limit", scope)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is a KV backed by a map. Expired entries are dropped lazily on read.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Read(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		// a concurrent Write may have replaced the entry since the read lock
		if current, ok := m.data[key]; ok && current.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Write(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// FixedWindowAllow counts a hit for scope in the current window, mirroring
// the Redis limiter for single-process deployments.
func (m *Memory) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	key := RateLimitKey(scope)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[key]
	count := int64(0)
	if ok && !entry.expired(now) {
		count, _ = strconv.ParseInt(entry.value, 10, 64)
	} else {
		entry = memoryEntry{}
		if window > 0 {
			entry.expiresAt = now.Add(window)
		}
	}
	count++
	entry.value = strconv.FormatInt(count, 10)
	m.data[key] = entry
	return count <= limit, count, nil
}

// Sweep deletes every expired entry and returns how many were removed.
func (m *Memory) Sweep(_ context.Context) int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.data {
		if entry.expired(now) {
			delete(m.data, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
