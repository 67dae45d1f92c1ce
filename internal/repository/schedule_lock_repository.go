package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scheduleLockPrefix = "timetable:generate:"

// releaseLockScript deletes the key only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ScheduleLockRepository holds per-school generation locks in Redis so that several API
// instances never regenerate the same school at once.
type ScheduleLockRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewScheduleLockRepository constructs the lock repository.
func NewScheduleLockRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ScheduleLockRepository {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleLockRepository{client: client, ttl: ttl, logger: logger}
}

// TryLock acquires the lock of the school. It returns ok=false when another holder owns it.
func (r *ScheduleLockRepository) TryLock(ctx context.Context, schoolID string) (func(), bool, error) {
	key := scheduleLockPrefix + schoolID
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); releaseFailed(err) {
			r.logger.Warn("failed to release generation lock", zap.String("school_id", schoolID), zap.Error(err))
		}
	}
	return release, true, nil
}

// releaseFailed reports a real release error. redis.Nil, wrapped or not, only means the key
// had already expired.
func releaseFailed(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil)
}
