package transport

import "golang.org/x/time/rate"

// RateLimiter throttles how many client frames (subscribe/unsubscribe) one
// connection may send per second. Grounded on
// goadesign-goa-ai/features/model/middleware/ratelimit.go's use of
// golang.org/x/time/rate.NewLimiter for token-budget throttling, stripped
// down from that file's AIMD probe/backoff adjustment loop (built for
// provider TPM budgets that grow and shrink over a conversation) to a
// single fixed token bucket, since a WebSocket client's frame rate has no
// analogous external budget to track.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond frames per
// second, with burst as the bucket size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Allow reports whether a frame may be processed now, consuming one token
// if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
