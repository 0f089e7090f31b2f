package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/journeygen-backend/pkg/clientip"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

const (
	RateLimitWindow      = 120 * time.Second
	RateLimitMaxRequests = 120
	RateLimitKeyPrefix   = "journeygen:ratelimit:"
	BlockedIPKeyPrefix   = "journeygen:blocked_ip:"
	BlockedIPDuration    = 15 * time.Minute
)

// RedisRateLimit counts requests per IP in a fixed window shared by every
// instance. An IP over the limit is blocked for BlockedIPDuration. Redis
// failures let the request through.
func RedisRateLimit(client *redis.Client, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.RealClientIP(r)
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()

			blockedKey := BlockedIPKeyPrefix + ip
			if n, err := client.Exists(ctx, blockedKey).Result(); err == nil && n > 0 {
				writeError(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
				return
			}

			key := RateLimitKeyPrefix + ip
			n, err := client.Incr(ctx, key).Result()
			if err != nil {
				log.Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if n == 1 {
				// First request opens the window.
				client.Expire(ctx, key, RateLimitWindow)
			}

			count := int(n)
			if count > RateLimitMaxRequests {
				if err := client.Set(ctx, blockedKey, "1", BlockedIPDuration).Err(); err != nil {
					log.Warn("failed to block ip", "error", err)
				}
				w.Header().Set("Retry-After", fmt.Sprint(int(BlockedIPDuration.Seconds())))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(RateLimitMaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(RateLimitMaxRequests-count))
			next.ServeHTTP(w, r)
		})
	}
}
