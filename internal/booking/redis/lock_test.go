package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client)
}

func TestLockSlotExclusive(t *testing.T) {
	r := setupRedis(t)

	ok, err := r.LockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-a")
	require.NoError(t, err)
	assert.True(t, ok, "first lock should succeed")

	ok, err = r.LockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-b")
	require.NoError(t, err)
	assert.False(t, ok, "second lock on the same slot should be denied")

	// A different slot on the same table is independent.
	ok, err = r.LockSlot("venue-1", "table-1", "2026-09-01", "20:00", "booking-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockSlotOwnerOnly(t *testing.T) {
	r := setupRedis(t)

	ok, err := r.LockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-a")
	require.NoError(t, err)
	require.True(t, ok)

	// A non-owner release is a no-op, the lock stays held.
	require.NoError(t, r.UnlockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-b"))
	ok, err = r.LockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-c")
	require.NoError(t, err)
	assert.False(t, ok, "lock should survive a non-owner release")

	// The owner releases, slot becomes available.
	require.NoError(t, r.UnlockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-a"))
	ok, err = r.LockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockSlotAlreadyReleased(t *testing.T) {
	r := setupRedis(t)
	assert.NoError(t, r.UnlockSlot("venue-1", "table-1", "2026-09-01", "18:00", "booking-a"))
}

func TestJobLock(t *testing.T) {
	r := setupRedis(t)

	ok, err := r.AcquireJobLock("payment_reconciliation", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.AcquireJobLock("payment_reconciliation", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire while held should fail")

	// A different job name is independent.
	ok, err = r.AcquireJobLock("payment_timeout", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.ReleaseJobLock("payment_reconciliation"))
	ok, err = r.AcquireJobLock("payment_reconciliation", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
