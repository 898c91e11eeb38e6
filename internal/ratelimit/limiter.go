// Package ratelimit implements the per-user dispatch quota: a counter per
// user that every consumed dispatch decrements and a periodic sweep
// resets to a global ceiling.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter holds one bucket per known user. Consume and reset for the same
// user are serialized by the bucket mutex; different users never contend
// beyond the short map lookup.
type Limiter struct {
	ceiling int

	mu    sync.Mutex
	users map[string]*bucket
}

type bucket struct {
	mu        sync.Mutex
	remaining int
}

// New creates a Limiter with the given ceiling.
func New(ceiling int) *Limiter {
	if ceiling < 0 {
		ceiling = 0
	}
	return &Limiter{ceiling: ceiling, users: make(map[string]*bucket)}
}

// Ceiling returns the global per-user quota.
func (l *Limiter) Ceiling() int { return l.ceiling }

func (l *Limiter) bucket(user string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.users[user]
	if !ok {
		b = &bucket{remaining: l.ceiling}
		l.users[user] = b
	}
	return b
}

// TryConsume takes one token from user and returns the tokens left after
// it. It returns false, changing nothing, when the user has none left.
func (l *Limiter) TryConsume(user string) (int, bool) {
	b := l.bucket(user)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return 0, false
	}
	b.remaining--
	return b.remaining, true
}

// Remaining returns the tokens left for user; unknown users have the ceiling.
func (l *Limiter) Remaining(user string) int {
	l.mu.Lock()
	b, ok := l.users[user]
	l.mu.Unlock()
	if !ok {
		return l.ceiling
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// ResetAll refills every known user to the ceiling.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	buckets := make([]*bucket, 0, len(l.users))
	for _, b := range l.users {
		buckets = append(buckets, b)
	}
	l.mu.Unlock()

	for _, b := range buckets {
		b.mu.Lock()
		b.remaining = l.ceiling
		b.mu.Unlock()
	}
}

// Users returns the number of users with recorded state.
func (l *Limiter) Users() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// Run calls ResetAll every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("ratelimit: reset loop started",
		slog.Int("ceiling", l.ceiling), slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("ratelimit: reset loop stopped")
			return
		case <-ticker.C:
			l.ResetAll()
			logger.Debug("ratelimit: quotas refreshed", slog.Int("users", l.Users()))
		}
	}
}
