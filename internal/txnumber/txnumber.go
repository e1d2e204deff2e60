// Package txnumber issues human-readable sale numbers of the form
// PREFIX-YYYYMMDD-NNNN, sequential per store-local day.
package txnumber

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kasirpos/backend/internal/store"
)

const dateLayout = "20060102"

// Generator returns the next number for now's day. Numbers are only
// reserved once the sale row holding them commits, so callers still rely
// on the unique constraint and retry on conflict.
type Generator interface {
	Next(ctx context.Context, tx store.Tx, now time.Time) (string, error)
}

// DayPrefix is "PREFIX-YYYYMMDD-" for now in loc.
func DayPrefix(prefix string, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s-%s-", prefix, now.In(loc).Format(dateLayout))
}

// Format pads seq to four digits; past 9999 the number simply grows.
func Format(dayPrefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", dayPrefix, seq)
}

// Sequence extracts the trailing counter of a number issued under
// dayPrefix. An empty or foreign number yields 0.
func Sequence(dayPrefix string, number string) int64 {
	if !strings.HasPrefix(number, dayPrefix) {
		return 0
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(number, dayPrefix), 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

// StoreSequence derives the next number from the last one persisted for the
// day, read inside the sale's own transaction.
type StoreSequence struct {
	Prefix   string
	Location *time.Location
}

func NewStoreSequence(prefix string, loc *time.Location) StoreSequence {
	return StoreSequence{Prefix: normalizePrefix(prefix), Location: loc}
}

func (s StoreSequence) Next(ctx context.Context, tx store.Tx, now time.Time) (string, error) {
	dayPrefix := DayPrefix(s.Prefix, now, s.Location)
	last, err := tx.LastTransactionNumber(ctx, dayPrefix)
	if err != nil {
		return "", fmt.Errorf("read last transaction number: %w", err)
	}
	return Format(dayPrefix, Sequence(dayPrefix, last)+1), nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "TXN"
	}
	return prefix
}
