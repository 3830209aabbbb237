// Package ratelimit tracks per-client request rates with sliding windows,
// keyed by upstream service so expensive providers get tighter budgets.
package ratelimit

import (
	"sync"
	"time"
)

// Service names the rate bucket a route draws from.
type Service string

const (
	ServiceSTT     Service = "assemblyai"
	ServiceTTS     Service = "google_tts"
	ServiceChat    Service = "ai_service"
	ServiceGeneral Service = "general"
)

// Limit is one bucket's budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Decision is the outcome of a permit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter holds sliding request windows per client and service.
type Limiter struct {
	limits map[Service]Limit
	now    func() time.Time

	mu      sync.Mutex
	history map[string]map[Service][]time.Time
}

// Config sets per-service budgets. Zero-valued entries fall back to the
// general limit.
type Config struct {
	Limits map[Service]Limit
}

// DefaultLimits mirror the per-minute budgets of the hosted services.
func DefaultLimits() map[Service]Limit {
	return map[Service]Limit{
		ServiceSTT:     {Requests: 10, Window: time.Minute},
		ServiceTTS:     {Requests: 50, Window: time.Minute},
		ServiceChat:    {Requests: 60, Window: time.Minute},
		ServiceGeneral: {Requests: 100, Window: time.Minute},
	}
}

// New creates a limiter. Nil or incomplete configs use DefaultLimits.
func New(cfg Config) *Limiter {
	limits := DefaultLimits()
	for svc, l := range cfg.Limits {
		if l.Requests > 0 && l.Window > 0 {
			limits[svc] = l
		}
	}
	return &Limiter{
		limits:  limits,
		now:     time.Now,
		history: make(map[string]map[Service][]time.Time),
	}
}

// Permit records a request attempt for the client and reports whether it is
// within budget. Denied attempts are not recorded.
func (l *Limiter) Permit(client string, svc Service) Decision {
	limit, ok := l.limits[svc]
	if !ok {
		limit = l.limits[ServiceGeneral]
	}
	now := l.now()
	cutoff := now.Add(-limit.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	byService, ok := l.history[client]
	if !ok {
		byService = make(map[Service][]time.Time)
		l.history[client] = byService
	}

	window := byService[svc]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit.Requests {
		reset := kept[0].Add(limit.Window)
		byService[svc] = kept
		return Decision{
			Allowed:    false,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: reset.Sub(now),
		}
	}

	kept = append(kept, now)
	byService[svc] = kept
	return Decision{
		Allowed:   true,
		Remaining: limit.Requests - len(kept),
		Reset:     now.Add(limit.Window),
	}
}
