package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"log"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getSlotLockDuration returns the slot lock TTL from the environment or the
// default. The lock only needs to outlive the window between conflict check
// and insert, so a short TTL is enough.
func (r *Redis) getSlotLockDuration() time.Duration {
	defaultDuration := 5 * time.Minute

	lockTTLStr := os.Getenv("SLOT_LOCK_TTL_MINUTES")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLMin, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid SLOT_LOCK_TTL_MINUTES value '" + lockTTLStr + "', using default 5 minutes")
		return defaultDuration
	}

	return time.Duration(lockTTLMin) * time.Minute
}

func slotKey(venueID, tableID, date, startTime string) string {
	return fmt.Sprintf("slot_lock:%s:%s:%s:%s", venueID, tableID, date, startTime)
}

// LockSlot takes the lock for one table-time slot. It closes the window
// between the conflict checker's read and the booking insert: two concurrent
// requests for the same slot cannot both hold the lock.
func (r *Redis) LockSlot(venueID, tableID, date, startTime, bookingID string) (bool, error) {
	key := slotKey(venueID, tableID, date, startTime)
	return r.Client.SetNX(context.Background(), key, bookingID, r.getSlotLockDuration()).Result()
}

// UnlockSlot releases the slot only if it is still held by the same booking.
func (r *Redis) UnlockSlot(venueID, tableID, date, startTime, bookingID string) error {
	ctx := context.Background()
	key := slotKey(venueID, tableID, date, startTime)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	if err != nil {
		return err
	}
	if val == bookingID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// AcquireJobLock guards a scheduled job against overlapping cron fires. The
// TTL bounds how long a crashed run can keep the job locked out.
func (r *Redis) AcquireJobLock(jobName string, ttl time.Duration) (bool, error) {
	key := "job_lock:" + jobName
	return r.Client.SetNX(context.Background(), key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *Redis) ReleaseJobLock(jobName string) error {
	_, err := r.Client.Del(context.Background(), "job_lock:"+jobName).Result()
	return err
}
