package middleware

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/adamgordonbell/c3-azure-demo/pkg/cache"
	"github.com/adamgordonbell/c3-azure-demo/pkg/config"
	"github.com/adamgordonbell/c3-azure-demo/pkg/logger"
)

const rateLimitKey = "ratelimit:api"

// distributedRate converts a fractional RPS to the whole-number rate
// redis_rate expects. Rounding up keeps sub-1 limits usable instead of
// truncating them to zero, which would reject everything.
func distributedRate(rps float64) int {
	return int(math.Ceil(rps))
}

// NewRateLimiter limits request throughput. With Redis available the limit
// is enforced across all instances via redis_rate; otherwise a local token
// bucket applies per process. Limits come from the live config so they can
// be hot-reloaded.
func NewRateLimiter(rdb *cache.Client, cfgStore *config.Store) func(http.Handler) http.Handler {
	var distributed *redis_rate.Limiter
	if rdb != nil {
		distributed = redis_rate.NewLimiter(rdb.Redis())
	}

	var mu sync.Mutex
	var local *rate.Limiter
	var localRPS float64
	var localBurst int

	allowLocal := func(rps float64, burst int) bool {
		mu.Lock()
		defer mu.Unlock()
		if local == nil || rps != localRPS || burst != localBurst {
			local = rate.NewLimiter(rate.Limit(rps), burst)
			localRPS, localBurst = rps, burst
		}
		return local.Allow()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := cfgStore.Get()
			if cfg == nil || !cfg.RateLimit.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			rl := cfg.RateLimit

			if distributed != nil {
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()

				res, err := distributed.Allow(ctx, rateLimitKey, redis_rate.Limit{
					Rate:   distributedRate(rl.RPS),
					Burst:  rl.Burst,
					Period: time.Second,
				})
				if err == nil {
					if res.Allowed == 0 {
						http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
						return
					}
					next.ServeHTTP(w, r)
					return
				}
				// Redis trouble shouldn't take the API down; fall back to
				// the local bucket.
				logger.Warn("distributed rate limit check failed", logger.Err(err))
			}

			if !allowLocal(rl.RPS, rl.Burst) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
