package txnumber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
)

const (
	counterTTL  = 48 * time.Hour
	seedLockTTL = 5 * time.Second
)

// RedisSequence hands out numbers from an atomic per-day INCR counter. The
// first use of a day seeds the counter from the store under a distributed
// lock so a restart never reissues a committed number.
type RedisSequence struct {
	client   *redis.Client
	locker   *redislock.Client
	prefix   string
	location *time.Location
}

func NewRedisSequence(client *redis.Client, prefix string, loc *time.Location) *RedisSequence {
	return &RedisSequence{
		client:   client,
		locker:   redislock.New(client),
		prefix:   normalizePrefix(prefix),
		location: loc,
	}
}

func (s *RedisSequence) counterKey(now time.Time) string {
	loc := s.location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("pos:txnseq:%s:%s", s.prefix, now.In(loc).Format(dateLayout))
}

func (s *RedisSequence) Next(ctx context.Context, tx store.Tx, now time.Time) (string, error) {
	dayPrefix := DayPrefix(s.prefix, now, s.location)
	key := s.counterKey(now)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("check sequence counter: %w", err)
	}
	if exists == 0 {
		if err := s.seed(ctx, tx, key, dayPrefix); err != nil {
			return "", err
		}
	}

	seq, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("increment sequence counter: %w", err)
	}
	return Format(dayPrefix, seq), nil
}

func (s *RedisSequence) seed(ctx context.Context, tx store.Tx, key string, dayPrefix string) error {
	lock, err := s.locker.Obtain(ctx, key+":seed", seedLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("seed sequence counter: %w", store.ErrTransactionNumberConflict)
	}
	if err != nil {
		return fmt.Errorf("obtain sequence seed lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			telemetry.L().Warn("release sequence seed lock", zap.String("key", key), zap.Error(releaseErr))
		}
	}()

	last, err := tx.LastTransactionNumber(ctx, dayPrefix)
	if err != nil {
		return fmt.Errorf("read last transaction number: %w", err)
	}
	// SetNX keeps a counter another node seeded while we waited for the lock.
	if err := s.client.SetNX(ctx, key, Sequence(dayPrefix, last), counterTTL).Err(); err != nil {
		return fmt.Errorf("seed sequence counter: %w", err)
	}
	return nil
}

// Reset drops the day's counter so the next call reseeds from the store.
// The sale processor calls it after a number conflict.
func (s *RedisSequence) Reset(ctx context.Context, now time.Time) error {
	return s.client.Del(ctx, s.counterKey(now)).Err()
}
