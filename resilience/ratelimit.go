// Package resilience provides execution rate limiting.
//
// The limiter is fail-fast: a denied command returns immediately rather
// than queueing, matching the module's single-attempt execution model.
package resilience

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter controls execution rate per binary name.
type RateLimiter interface {
	// Allow reports whether an execution of the binary may proceed now.
	Allow(binary string) bool

	// SetLimit overrides the rate limit for one binary.
	SetLimit(binary string, limit rate.Limit, burst int)
}

// Config configures the rate limiter.
type Config struct {
	// RequestsPerSecond is the default sustained rate per binary.
	RequestsPerSecond float64

	// Burst is the default burst size per binary.
	Burst int

	// PerBinary tracks each binary separately; otherwise one global
	// limiter covers everything.
	PerBinary bool
}

// DefaultConfig returns the default rate limiter configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 100,
		Burst:             150,
		PerBinary:         true,
	}
}

type rateLimiter struct {
	config   Config
	global   *rate.Limiter
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(config Config) RateLimiter {
	return &rateLimiter{
		config:   config,
		global:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow implements RateLimiter.Allow.
func (rl *rateLimiter) Allow(binary string) bool {
	if !rl.config.PerBinary {
		return rl.global.Allow()
	}
	return rl.limiter(binary).Allow()
}

// SetLimit implements RateLimiter.SetLimit.
func (rl *rateLimiter) SetLimit(binary string, limit rate.Limit, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters[binary] = rate.NewLimiter(limit, burst)
}

func (rl *rateLimiter) limiter(binary string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[binary]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
	rl.limiters[binary] = l
	return l
}
