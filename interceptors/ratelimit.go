package interceptors

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// ErrRateLimited is returned for calls rejected by a RateLimit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit applies a token bucket per method. Methods without their own
// limit share the defaults, each with a separate bucket.
type RateLimit struct {
	// Wait blocks until a token is available or the call's context ends,
	// instead of rejecting the call.
	Wait bool

	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
	limits   map[string]rate.Limit
	bursts   map[string]int
	limiters map[servicebridge.MethodIdentity]*rate.Limiter
}

// NewRateLimit creates a RateLimit allowing rps calls per second per method.
// A non-positive rps disables the default limit.
func NewRateLimit(rps float64, burst int) *RateLimit {
	r := &RateLimit{
		limits:   make(map[string]rate.Limit),
		bursts:   make(map[string]int),
		limiters: make(map[servicebridge.MethodIdentity]*rate.Limiter),
	}
	r.rps, r.burst = limitOf(rps, burst)
	return r
}

// Set configures the limit of every method with the given name.
func (r *RateLimit) Set(method string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limits[method], r.bursts[method] = limitOf(rps, burst)
	for id := range r.limiters {
		if id.Name == method {
			delete(r.limiters, id)
		}
	}
}

func (r *RateLimit) Name() string {
	return "ratelimit"
}

func (r *RateLimit) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	limiter := r.limiter(inv.Method().Identity())
	if limiter == nil {
		return next(inv)
	}

	if r.Wait {
		if err := limiter.Wait(inv.Context()); err != nil {
			return inv.CreateExceptionReturn(fmt.Errorf("%s: %w: %v", inv.Method(), ErrRateLimited, err))
		}
		return next(inv)
	}

	if !limiter.Allow() {
		return inv.CreateExceptionReturn(fmt.Errorf("%s: %w", inv.Method(), ErrRateLimited))
	}
	return next(inv)
}

func (r *RateLimit) limiter(id servicebridge.MethodIdentity) *rate.Limiter {
	r.mu.RLock()
	lim, ok := r.limiters[id]
	r.mu.RUnlock()
	if ok {
		return lim
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.limiters[id]; ok {
		return lim
	}

	limit, burst := r.rps, r.burst
	if l, ok := r.limits[id.Name]; ok {
		limit, burst = l, r.bursts[id.Name]
	}
	if limit == rate.Inf {
		r.limiters[id] = nil
		return nil
	}

	lim = rate.NewLimiter(limit, burst)
	r.limiters[id] = lim
	return lim
}

func limitOf(rps float64, burst int) (rate.Limit, int) {
	if rps <= 0 {
		return rate.Inf, 0
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.Limit(rps), burst
}
