package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Local is the in-process counterpart of Limiter, used when no Redis is
// configured. Counters live only as long as the process.
type Local struct {
	Limit  int
	Window time.Duration

	mu      sync.Mutex
	windows map[string]localWindow
	now     func() time.Time
}

type localWindow struct {
	count   int
	resetAt time.Time
}

func NewLocal(limit int, window time.Duration) *Local {
	return &Local{Limit: limit, Window: window, now: time.Now}
}

func (l *Local) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	_ = ctx
	limit, window := normalize(l.Limit, l.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windows == nil {
		l.windows = make(map[string]localWindow)
	}
	if l.now == nil {
		l.now = time.Now
	}

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = localWindow{resetAt: now.Add(window)}
	}
	w.count++
	l.windows[key] = w

	ttl := w.resetAt.Sub(now)
	return w.count <= limit, ttl, nil
}
