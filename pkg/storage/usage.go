package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adamgordonbell/c3-azure-demo/pkg/logger"
)

// PlaceholderCount stands in for the request count when the store can't
// provide one. The response path is never blocked on storage.
const PlaceholderCount int64 = -1

const recentJokesLimit = 5

// Usage is the storage facade the request handlers talk to. It tolerates a
// nil store and absorbs every store failure: callers always get a usable
// value back, never an error.
type Usage struct {
	store Store
	now   func() time.Time
}

// NewUsage wraps a store. Pass nil when no store is configured; every
// operation then degrades to its no-op form.
func NewUsage(store Store) *Usage {
	return &Usage{
		store: store,
		now:   time.Now,
	}
}

// Available reports whether a backing store is configured.
func (u *Usage) Available() bool {
	return u.store != nil
}

// RecordJoke appends a joke record. The record value comes back even when
// persistence fails or no store is configured.
func (u *Usage) RecordJoke(ctx context.Context, joke, keywords string) JokeRecord {
	rec := JokeRecord{
		ID:        uuid.NewString(),
		Joke:      joke,
		Keywords:  keywords,
		Timestamp: u.now().UTC(),
	}

	if u.store == nil {
		return rec
	}
	if err := u.store.SaveJoke(ctx, &rec); err != nil {
		logger.Warn("failed to record joke", logger.Err(err), logger.String("id", rec.ID))
	}
	return rec
}

// IncrementToday bumps today's counter and returns the new count, or
// PlaceholderCount when the store is missing or the update failed.
func (u *Usage) IncrementToday(ctx context.Context) int64 {
	if u.store == nil {
		return PlaceholderCount
	}

	count, err := u.store.IncrementDailyCounter(ctx, DayKey(u.now()))
	if err != nil {
		logger.Warn("failed to increment daily counter", logger.Err(err))
		return PlaceholderCount
	}
	return count
}

// Stats builds the aggregate snapshot. Any store trouble yields an all-zero
// snapshot flagged unavailable rather than an error.
func (u *Usage) Stats(ctx context.Context) StatsSnapshot {
	snapshot := StatsSnapshot{RecentJokes: []JokeRecord{}}
	if u.store == nil {
		return snapshot
	}

	today, err := u.store.DailyCount(ctx, DayKey(u.now()))
	if err != nil {
		logger.Warn("failed to read today's counter", logger.Err(err))
		return snapshot
	}

	total, err := u.store.TotalCount(ctx)
	if err != nil {
		logger.Warn("failed to sum counters", logger.Err(err))
		return snapshot
	}

	recent, err := u.store.RecentJokes(ctx, recentJokesLimit)
	if err != nil {
		logger.Warn("failed to read recent jokes", logger.Err(err))
		return snapshot
	}
	if recent == nil {
		recent = []JokeRecord{}
	}

	return StatsSnapshot{
		TotalRequests:  total,
		TodayRequests:  today,
		RecentJokes:    recent,
		StoreAvailable: true,
	}
}
