package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
)

var ErrInvalidAsOf = errors.New("invalid_as_of")

// Service answers the analytics queries behind the dashboard panels.
type Service interface {
	KPIs(ctx context.Context) (KPIs, error)
	// MRR runs from the month of the earliest subscription start through the
	// month of asOf. A zero asOf means today.
	MRR(ctx context.Context, asOf time.Time) ([]MRRPoint, error)
	ActiveSubscriptions(ctx context.Context) ([]ActiveSubscriptionsPoint, error)
	RevenueByChannel(ctx context.Context) ([]ChannelRevenue, error)
	Retention(ctx context.Context) ([]RetentionPoint, error)
	Snapshot(ctx context.Context, asOf time.Time) (Snapshot, error)
}

// SnapshotCache stores rendered snapshots between requests.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	Set(ctx context.Context, key string, snapshot Snapshot, ttl time.Duration) error
	// TryLock guards a single refresh per key. ok is false when another
	// caller holds the lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// ParseAsOf reads a YYYY-MM-DD date. An empty value yields the zero time.
func ParseAsOf(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(ledgerdomain.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidAsOf, raw)
	}
	return t, nil
}
