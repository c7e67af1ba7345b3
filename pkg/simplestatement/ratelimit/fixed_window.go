package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type window struct {
	start time.Time
	count int
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// FixedWindow is an in-process limiter. Keys are spread over shards so
// unrelated keys rarely contend on the same lock.
type FixedWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time
	shards [shardCount]*shard
}

// FixedWindowOption configures a FixedWindow.
type FixedWindowOption func(*FixedWindow)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(f *FixedWindow) {
		f.now = now
	}
}

// NewFixedWindow creates an in-process limiter admitting limit requests per
// key per window.
func NewFixedWindow(limit int, windowSize time.Duration, opts ...FixedWindowOption) (*FixedWindow, error) {
	if err := validate(limit, windowSize); err != nil {
		return nil, err
	}

	f := &FixedWindow{
		limit:  limit,
		window: windowSize,
		now:    time.Now,
	}
	for i := range f.shards {
		f.shards[i] = &shard{windows: make(map[string]*window)}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FixedWindow) shardFor(key string) *shard {
	return f.shards[xxhash.Sum64String(key)%shardCount]
}

// TryConsume reports whether the request is admitted and counts it if so.
func (f *FixedWindow) TryConsume(key string) bool {
	s := f.shardFor(key)
	now := f.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= f.window {
		s.windows[key] = &window{start: now, count: 1}
		return true
	}
	if w.count >= f.limit {
		return false
	}
	w.count++
	return true
}

// Allow implements Limiter. It never returns an error.
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	return f.TryConsume(key), nil
}

// Sweep drops expired windows and returns how many were removed.
func (f *FixedWindow) Sweep() int {
	now := f.now()
	removed := 0
	for _, s := range f.shards {
		s.mu.Lock()
		for key, w := range s.windows {
			if now.Sub(w.start) >= f.window {
				delete(s.windows, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys.
func (f *FixedWindow) Len() int {
	n := 0
	for _, s := range f.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (f *FixedWindow) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Sweep()
		}
	}
}
