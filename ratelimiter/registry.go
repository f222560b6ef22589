package ratelimiter

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLimiterNotFound is returned by a registry with no limiter for a model.
var ErrLimiterNotFound = errors.New("rate limiter not found")

// RateLimiterRegistry manages rate limiters for different models.
type RateLimiterRegistry interface {
	Get(model string) (Limiter, error)
	Set(model string, limiter Limiter)
}

type rateLimiterMapRegistry struct {
	registry map[string]Limiter
	mu       sync.RWMutex
}

// NewRateLimiterRegistry creates a new in-memory rate limiter registry.
func NewRateLimiterRegistry() RateLimiterRegistry {
	return &rateLimiterMapRegistry{
		registry: make(map[string]Limiter),
	}
}

func (r *rateLimiterMapRegistry) Get(model string) (Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limiter, exists := r.registry[model]
	if !exists {
		return nil, fmt.Errorf("%w for model: %s", ErrLimiterNotFound, model)
	}
	return limiter, nil
}

// Set registers limiter for model. A nil limiter removes the entry.
func (r *rateLimiterMapRegistry) Set(model string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter == nil {
		delete(r.registry, model)
		return
	}
	r.registry[model] = limiter
}
