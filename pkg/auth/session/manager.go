package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/pkg/storage"
)

const guestOwner = "guest"

var ErrUnknownSession = errors.New("unknown session")

// Manager issues session ids and tracks which are still active.
type Manager struct {
	store storage.KV
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

// NewManager constructs a session manager over the session store.
func NewManager(store storage.KV, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Open registers a new session. An empty userID opens a guest session.
func (m *Manager) Open(ctx context.Context, userID string) (string, error) {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		owner = guestOwner
	}
	sessionID := NewSessionID()
	if err := m.store.Write(ctx, storage.SessionKey(sessionID), owner, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Owner returns the user bound to the session, or "" for a guest.
func (m *Manager) Owner(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrUnknownSession
	}
	owner, found, err := m.store.Read(ctx, storage.SessionKey(sessionID))
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrUnknownSession
	}
	if owner == guestOwner {
		return "", nil
	}
	return owner, nil
}

// Revoke ends the session.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Remove(ctx, storage.SessionKey(sessionID))
}

// HasSession reports whether the session is still active.
func (m *Manager) HasSession(ctx context.Context, sessionID string) (bool, error) {
	if _, err := m.Owner(ctx, sessionID); err != nil {
		if errors.Is(err, ErrUnknownSession) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewSessionID produces the identifier used as the JWT sid and store key.
func NewSessionID() string {
	return uuid.NewString()
}
