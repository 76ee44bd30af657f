package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestManagerGetSharesSession(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	defer mgr.Close()

	a, err := mgr.Get("sess-1", "")
	require.NoError(t, err)
	b, err := mgr.Get(" sess-1 ", "")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, mgr.Len())

	_, err = mgr.Get("", "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestManagerBindsProfileForSignedInUsers(t *testing.T) {
	saved := NewRecord(18.52, 73.85)
	saved.City = "Pune"
	var requested []string
	mgr := NewManager(ManagerOptions{
		ProfileFor: func(userID string) ProfileStore {
			requested = append(requested, userID)
			return &fakeProfile{rec: saved}
		},
	})
	defer mgr.Close()

	sess, err := mgr.Get("sess-1", "user-9")
	require.NoError(t, err)
	sess.Geolocator.PushError(CodePermissionDenied, "denied")

	rec, err := sess.Service.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pune", rec.City)
	assert.Equal(t, []string{"user-9"}, requested)

	anon, err := mgr.Get("sess-2", "")
	require.NoError(t, err)
	anon.Geolocator.PushError(CodePermissionDenied, "denied")
	_, err = anon.Service.Start(context.Background())
	assert.Error(t, err)
	assert.Len(t, requested, 1)
}

func TestManagerEvictIdleClosesSessions(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mgr := NewManager(ManagerOptions{Clock: clock.Now})
	defer mgr.Close()

	stale, err := mgr.Get("stale", "")
	require.NoError(t, err)
	tracker, err := stale.Service.StartTracking(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = mgr.Get("fresh", "")
	require.NoError(t, err)

	assert.Equal(t, 1, mgr.EvictIdle(context.Background(), 30*time.Minute))
	assert.Equal(t, 1, mgr.Len())
	<-tracker.Done()
	assert.Equal(t, 0, stale.Geolocator.Watchers())

	again, err := mgr.Get("stale", "")
	require.NoError(t, err)
	assert.NotSame(t, stale, again)
}

func TestSessionTrackingIsSingleton(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	defer mgr.Close()

	sess, err := mgr.Get("sess-1", "")
	require.NoError(t, err)

	started, err := sess.StartTracking(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
	started, err = sess.StartTracking(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, 1, sess.Service.ActiveTrackers())
	assert.Equal(t, 1, sess.Geolocator.Watchers())

	assert.True(t, sess.StopTracking())
	assert.False(t, sess.StopTracking())
	assert.Equal(t, 0, sess.Service.ActiveTrackers())
}
