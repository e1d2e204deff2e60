package txnumber

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
)

func TestDayPrefixUsesStoreLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 20:00 UTC on the 14th is already the 15th in Jakarta.
	at := time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "TXN-20240315-", DayPrefix("TXN", at, jakarta))
	assert.Equal(t, "TXN-20240314-", DayPrefix("TXN", at, nil))
}

func TestFormatAndSequence(t *testing.T) {
	assert.Equal(t, "TXN-20240315-0001", Format("TXN-20240315-", 1))
	assert.Equal(t, "TXN-20240315-12345", Format("TXN-20240315-", 12345))

	assert.EqualValues(t, 42, Sequence("TXN-20240315-", "TXN-20240315-0042"))
	assert.EqualValues(t, 12345, Sequence("TXN-20240315-", "TXN-20240315-12345"))
	assert.EqualValues(t, 0, Sequence("TXN-20240315-", ""))
	assert.EqualValues(t, 0, Sequence("TXN-20240315-", "TXN-20240314-0009"))
	assert.EqualValues(t, 0, Sequence("TXN-20240315-", "TXN-20240315-abcd"))
}

func TestStoreSequenceContinuesFromLastNumber(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) error {
		for _, number := range []string{"POS-20240315-0009", "POS-20240315-0010", "POS-20240314-0099"} {
			if err := tx.InsertSale(ctx, domain.Sale{ID: number, TransactionNumber: number, Status: domain.SaleStatusCompleted, CreatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	}))

	seq := NewStoreSequence(" pos ", time.UTC)
	assert.Equal(t, "POS", seq.Prefix)

	var next string
	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) (err error) {
		next, err = seq.Next(ctx, tx, now)
		return err
	}))
	assert.Equal(t, "POS-20240315-0011", next)

	require.NoError(t, repo.WithTx(ctx, func(tx store.Tx) (err error) {
		next, err = seq.Next(ctx, tx, now.Add(48*time.Hour))
		return err
	}))
	assert.Equal(t, "POS-20240317-0001", next)
}

func TestNormalizePrefixDefault(t *testing.T) {
	assert.Equal(t, "TXN", NewStoreSequence("", nil).Prefix)
}
