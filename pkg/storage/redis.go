package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adamgordonbell/c3-azure-demo/pkg/cache"
)

const (
	jokeKeyPrefix    = "joke:"
	counterKeyPrefix = "counter:daily:"
	timelineKey      = "jokes:timeline"

	// counterRetries bounds the optimistic CAS loop on the daily counter.
	counterRetries = 3
)

// RedisStore implements Store using Redis. Jokes live as JSON blobs indexed
// by a sorted-set timeline; daily counters are JSON entities updated with a
// WATCH-based compare-and-swap so concurrent handlers don't lose increments.
type RedisStore struct {
	rdb *cache.Client
	now func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(rdb *cache.Client) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		now: time.Now,
	}
}

// SaveJoke appends a joke record and indexes it on the timeline.
func (s *RedisStore) SaveJoke(ctx context.Context, rec *JokeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := jokeKeyPrefix + rec.ID
	if err := s.rdb.Set(ctx, key, data, 0); err != nil {
		return fmt.Errorf("saving joke %s: %w", rec.ID, err)
	}

	err = s.rdb.Redis().ZAdd(ctx, timelineKey, redis.Z{
		Score:  float64(rec.Timestamp.UnixNano()),
		Member: rec.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("indexing joke %s: %w", rec.ID, err)
	}
	return nil
}

// RecentJokes returns up to limit records, newest first.
func (s *RedisStore) RecentJokes(ctx context.Context, limit int) ([]JokeRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	ids, err := s.rdb.Redis().ZRevRange(ctx, timelineKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]JokeRecord, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, jokeKeyPrefix+id)
		if err != nil {
			// Timeline can briefly reference a record another writer is
			// still persisting; skip rather than fail the whole read.
			continue
		}
		var rec JokeRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// IncrementDailyCounter bumps the counter for the given UTC day and returns
// the new count. Absent counters are created at 1. Write conflicts are
// retried up to counterRetries times before giving up.
func (s *RedisStore) IncrementDailyCounter(ctx context.Context, day string) (int64, error) {
	key := counterKeyPrefix + day
	var newCount int64

	increment := func(tx *redis.Tx) error {
		var counter DailyCounter
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
			counter = DailyCounter{Day: day}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &counter); err != nil {
				return fmt.Errorf("decoding counter %s: %w", day, err)
			}
		}

		counter.Count++
		counter.LastUpdated = s.now().UTC()
		payload, err := json.Marshal(counter)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			newCount = counter.Count
		}
		return err
	}

	for attempt := 0; attempt < counterRetries; attempt++ {
		err := s.rdb.Redis().Watch(ctx, increment, key)
		if err == nil {
			return newCount, nil
		}
		if err == redis.TxFailedErr {
			// Another handler got there first; re-read and try again.
			continue
		}
		return 0, err
	}
	return 0, ErrCounterConflict
}

// DailyCount reads one day's counter; a missing counter reads as zero.
func (s *RedisStore) DailyCount(ctx context.Context, day string) (int64, error) {
	data, err := s.rdb.Get(ctx, counterKeyPrefix+day)
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var counter DailyCounter
	if err := json.Unmarshal(data, &counter); err != nil {
		return 0, err
	}
	return counter.Count, nil
}

// TotalCount sums every daily counter.
func (s *RedisStore) TotalCount(ctx context.Context) (int64, error) {
	var total int64
	iter := s.rdb.Redis().Scan(ctx, 0, counterKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val())
		if err != nil {
			continue
		}
		var counter DailyCounter
		if err := json.Unmarshal(data, &counter); err != nil {
			continue
		}
		total += counter.Count
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx)
}
