// Package ratelimit enforces per-caller request and token budgets over
// fixed, non-sliding windows.
package ratelimit

import (
	"time"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// Limit is a caller's per-minute budget. A zero value disables that
// dimension.
type Limit struct {
	RPM int
	TPM int
}

// Decision is the post-check state of one limit dimension.
type Decision struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Result carries both dimensions for response headers. It is populated
// on every outcome, rejections included.
type Result struct {
	Requests Decision
	Tokens   Decision
}

// Limiter meters callers against request-per-minute and token-per-minute
// budgets. The token dimension is charged with the pre-flight estimate,
// so it gates admission rather than metering real usage.
type Limiter struct {
	store  *Store
	window time.Duration
}

// NewLimiter creates a limiter over one-minute windows.
func NewLimiter() *Limiter {
	return &Limiter{
		store:  NewStore(),
		window: time.Minute,
	}
}

// Allow admits one request weighing estimatedTokens against the caller's
// budgets. Counters are charged before limits are compared, and a
// rejection never refunds what was counted, so an overshooting estimate
// stays spent for the rest of the window.
func (l *Limiter) Allow(caller string, limit Limit, estimatedTokens int) (*Result, error) {
	res := &Result{}

	count, reset := l.store.Take(requestsKey(caller), 1, l.window)
	res.Requests = decide(limit.RPM, count, reset)
	if limit.RPM > 0 && count > limit.RPM {
		// The token window was never charged; report it as it stands.
		tcount, treset := l.store.Peek(tokensKey(caller), l.window)
		res.Tokens = decide(limit.TPM, tcount, treset)
		return res, domain.ErrRateLimited("rate limit exceeded: too many requests", limit.RPM, l.window, reset)
	}

	tcount, treset := l.store.Take(tokensKey(caller), estimatedTokens, l.window)
	res.Tokens = decide(limit.TPM, tcount, treset)
	if limit.TPM > 0 && tcount > limit.TPM {
		return res, domain.ErrRateLimited("rate limit exceeded: token budget exhausted", limit.TPM, l.window, treset)
	}

	return res, nil
}

// Sweep drops expired windows from the underlying store.
func (l *Limiter) Sweep() {
	l.store.Sweep()
}

func decide(limit, count int, reset time.Time) Decision {
	d := Decision{Limit: limit, Reset: reset}
	if limit > 0 {
		d.Remaining = limit - count
		if d.Remaining < 0 {
			d.Remaining = 0
		}
	}
	return d
}

func requestsKey(caller string) string {
	return "requests:" + caller
}

func tokensKey(caller string) string {
	return "tokens:" + caller
}

// Defaults for the coarse per-address guard.
const (
	DefaultIPLimit  = 1000
	DefaultIPWindow = 15 * time.Minute
)

// IPLimiter is a coarse per-address guard applied before any caller
// budget, sized to stop hot loops rather than meter usage.
type IPLimiter struct {
	store  *Store
	limit  int
	window time.Duration
}

// NewIPLimiter creates an address guard. Non-positive arguments fall
// back to the defaults.
func NewIPLimiter(limit int, window time.Duration) *IPLimiter {
	if limit <= 0 {
		limit = DefaultIPLimit
	}
	if window <= 0 {
		window = DefaultIPWindow
	}
	return &IPLimiter{
		store:  NewStore(),
		limit:  limit,
		window: window,
	}
}

// Allow admits one request from addr.
func (l *IPLimiter) Allow(addr string) error {
	count, reset := l.store.Take("ip:"+addr, 1, l.window)
	if count > l.limit {
		return domain.ErrRateLimited("too many requests from this address", l.limit, l.window, reset)
	}
	return nil
}

// Sweep drops expired windows from the underlying store.
func (l *IPLimiter) Sweep() {
	l.store.Sweep()
}
