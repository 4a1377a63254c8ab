// Package ratelimit implements the per-key fixed-window request counter that
// guards individual marketplace endpoints.
//
// A Store is process-local. Two processes behind the same load balancer each
// enforce their own limit; nothing is persisted or replicated.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"marketplace-gate/internal/bucketing"
)

const (
	DefaultMaxRequests = 60
	DefaultWindow      = 60 * time.Second
	DefaultShards      = 16
)

type Config struct {
	MaxRequests int
	Window      time.Duration
	Shards      int
}

// Entry is the window state for one key.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Decision is the outcome of a single admission check. RetryAfter is only set
// on rejection and is measured from the same clock reading as the decision.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// retryAfter is the time left until resetAt, rounded up to whole seconds.
func retryAfter(resetAt, now time.Time) time.Duration {
	if resetAt.IsZero() || !now.Before(resetAt) {
		return 0
	}
	left := resetAt.Sub(now)
	return (left + time.Second - 1).Truncate(time.Second)
}

type shard struct {
	mu      sync.Mutex
	entries map[string]Entry
}

type Store struct {
	maxRequests int
	window      time.Duration
	buckets     *bucketing.Manager
	shards      []*shard
	now         func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(cfg Config, opts ...Option) *Store {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}

	s := &Store{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		buckets:     bucketing.NewManager(cfg.Shards),
		shards:      make([]*shard, cfg.Shards),
		now:         time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Admit reports whether one more request for key fits in the current window,
// counting it if so. A nil Store or an empty key is never admitted.
func (s *Store) Admit(key string) bool {
	return s.Decide(key).Allowed
}

// Decide is Admit with the window details attached.
func (s *Store) Decide(key string) Decision {
	if s == nil || key == "" {
		return Decision{}
	}

	now := s.now()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok || !now.Before(entry.ResetAt) {
		entry = Entry{Count: 1, ResetAt: now.Add(s.window)}
		sh.entries[key] = entry
		return Decision{Allowed: true, Remaining: s.maxRequests - 1, ResetAt: entry.ResetAt}
	}

	if entry.Count < s.maxRequests {
		entry.Count++
		sh.entries[key] = entry
		return Decision{Allowed: true, Remaining: s.maxRequests - entry.Count, ResetAt: entry.ResetAt}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    entry.ResetAt,
		RetryAfter: retryAfter(entry.ResetAt, now),
	}
}

// Entry returns a copy of the state held for key.
func (s *Store) Entry(key string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	return entry, ok
}

// Len is the number of keys currently tracked.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

// Sweep drops entries whose window has ended. Such an entry would be
// reinitialized on its next request anyway, so no decision changes.
func (s *Store) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if !now.Before(entry.ResetAt) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep(s.now())
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

func (s *Store) MaxRequests() int {
	return s.maxRequests
}

func (s *Store) Window() time.Duration {
	return s.window
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[s.buckets.Bucket(key)]
}
