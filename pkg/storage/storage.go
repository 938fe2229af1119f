package storage

import (
	"context"
	"errors"
)

// ErrCounterConflict is returned when the daily counter could not be updated
// after exhausting the optimistic retry budget.
var ErrCounterConflict = errors.New("daily counter update conflicted too many times")

// Store defines the interface for persisting jokes and counters.
type Store interface {
	// Joke log
	SaveJoke(ctx context.Context, rec *JokeRecord) error
	RecentJokes(ctx context.Context, limit int) ([]JokeRecord, error)

	// Counters
	IncrementDailyCounter(ctx context.Context, day string) (int64, error)
	DailyCount(ctx context.Context, day string) (int64, error)
	TotalCount(ctx context.Context) (int64, error)

	// Health check
	Ping(ctx context.Context) error
}
