package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that paces requests to a provider.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	burst     float64

	tokens     float64
	lastUpdate time.Time

	consumed int64
	waited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	PerMinute       int           `json:"per_minute"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests with a
// burst of burst. A burst below 1 is treated as 1, which spaces requests evenly.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute:  requestsPerMinute,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilNextToken()
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// Drain empties the bucket, typically after the provider reported a 429.
func (r *RateLimiter) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	r.tokens = 0
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		PerMinute:       r.perMinute,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
	}
}

// refill adds tokens for elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * float64(r.perMinute) / 60.0
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}

// untilNextToken must be called with lock held.
func (r *RateLimiter) untilNextToken() time.Duration {
	need := 1.0 - r.tokens
	perSecond := float64(r.perMinute) / 60.0
	return time.Duration(need / perSecond * float64(time.Second))
}
