// Package ratelimit implements a per-domain fixed-window request budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leadforge/leadforge/internal/metrics"
)

// Defaults applied when Config fields are unset.
const (
	DefaultBudget = 60
	DefaultWindow = time.Minute
)

// Config holds rate limiter configuration.
type Config struct {
	// Budget is the number of requests allowed per domain per window.
	Budget int
	// Window is the length of the fixed window.
	Window time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter tracks a request budget per domain. State is process-local; this is
// an advisory limiter, not a distributed one. A background sweep removes
// expired entries to bound memory.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	budget  int
	window  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Limiter and starts its sweep goroutine.
func New(cfg Config) *Limiter {
	budget := cfg.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	win := cfg.Window
	if win <= 0 {
		win = DefaultWindow
	}
	l := &Limiter{
		windows: make(map[string]*window),
		budget:  budget,
		window:  win,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Wait enforces the domain's budget, blocking until the current window resets
// when the budget is exhausted. The context cancels the wait.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	now := time.Now()

	l.mu.Lock()
	w, ok := l.windows[domain]
	switch {
	case !ok:
		l.windows[domain] = &window{count: 1, resetAt: now.Add(l.window)}
		l.mu.Unlock()
		return nil
	case now.After(w.resetAt):
		w.count = 1
		w.resetAt = now.Add(l.window)
		l.mu.Unlock()
		return nil
	default:
		w.count++
		if w.count <= l.budget {
			l.mu.Unlock()
			return nil
		}
	}
	delay := time.Until(w.resetAt)
	l.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
		metrics.ObserveRateLimitDelay(domain, delay)
	}

	// The window has passed; start a fresh one counting this request.
	l.mu.Lock()
	w, ok = l.windows[domain]
	if !ok || time.Now().After(w.resetAt) {
		l.windows[domain] = &window{count: 1, resetAt: time.Now().Add(l.window)}
	} else {
		w.count++
	}
	l.mu.Unlock()
	return nil
}

// Stop terminates the sweep goroutine. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.doneCh
}

func (l *Limiter) sweep() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for domain, w := range l.windows {
				if now.After(w.resetAt) {
					delete(l.windows, domain)
				}
			}
			l.mu.Unlock()
		}
	}
}
