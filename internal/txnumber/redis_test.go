package txnumber

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("KASIRPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KASIRPOS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSequenceSeedsFromStore(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	prefix := "T" + uuid.NewString()[:6]
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	seq := NewRedisSequence(client, prefix, time.UTC)
	t.Cleanup(func() { _ = seq.Reset(context.Background(), now) })

	repo := memory.New()
	existing := Format(DayPrefix(seq.prefix, now, time.UTC), 7)
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertSale(ctx, domain.Sale{ID: "sal_1", TransactionNumber: existing, Status: domain.SaleStatusCompleted, CreatedAt: now})
	}))

	next := func() string {
		var number string
		require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) (err error) {
			number, err = seq.Next(ctx, tx, now)
			return err
		}))
		return number
	}
	assert.Equal(t, Format(DayPrefix(seq.prefix, now, time.UTC), 8), next())
	assert.Equal(t, Format(DayPrefix(seq.prefix, now, time.UTC), 9), next())

	require.NoError(t, seq.Reset(ctx, now))
	assert.Equal(t, Format(DayPrefix(seq.prefix, now, time.UTC), 8), next())
}
