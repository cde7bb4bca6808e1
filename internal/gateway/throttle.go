package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AlexKimmel/limits/internal/auth"
	"github.com/AlexKimmel/limits/internal/clock"
	"github.com/AlexKimmel/limits/internal/ratelimit"
)

// Throttle spaces requests per key ID according to policy. A request whose
// delay fits in maxWait is held for that delay and then served; longer
// delays are rejected with 429 without using up a slot.
func Throttle(
	lim ratelimit.Limiter,
	policy ratelimit.Policy,
	maxWait time.Duration,
	clk clock.Clock,
	skipPaths map[string]struct{},
	onLimited func(key string),
	onError func(key string),
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// allow ops endpoints without limits
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := auth.KeyIDFrom(r.Context())

			dec, err := lim.Reserve(r.Context(), key, policy, clk.Now(), maxWait)
			if err != nil {
				if onError != nil {
					onError(key)
				}
				writeJSON(w, http.StatusInternalServerError, "rate_limiter_error", "internal rate limiter error")
				return
			}

			w.Header().Set("X-RateLimit-Delay", strconv.FormatInt(dec.Delay.Milliseconds(), 10))

			if !dec.Allowed {
				if onLimited != nil {
					onLimited(key)
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter(dec.Delay), 10))
				writeJSON(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}

			if dec.Delay > 0 {
				select {
				case <-clk.After(dec.Delay):
				case <-r.Context().Done():
					// the slot stays consumed
					writeJSON(w, http.StatusServiceUnavailable, "cancelled", "request cancelled while waiting")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter rounds d up to whole seconds.
func retryAfter(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}
