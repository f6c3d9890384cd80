package storage

import (
	"context"
	"time"
)

// RateLimitStorage defines interface for the shared reset-request ledger
//
// Журнал разделяется всеми конкурентными запросами; записи устаревают сами
// по скользящему окну, явного teardown нет.
type RateLimitStorage interface {
	// Allow prunes the key's entries to the rolling window ending at now,
	// then reports whether another request fits under the limit.
	// The attempt is recorded only when allowed, so a denied request does
	// not consume quota. Prune, count and insert run in one transaction.
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)
}
