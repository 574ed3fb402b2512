package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// bucket is one token bucket. Its accounting is linearized by mu: the same
// unit of capacity is never granted twice, and tokens stays in [0, capacity].
type bucket struct {
	mu     sync.Mutex
	tokens int64
	// last is the refill accounting point. It advances by whole token
	// intervals so fractional refill is never lost between checks.
	last time.Time
}

// refill adds elapsed*rate tokens capped at capacity. Called with mu held.
func (b *bucket) refill(now time.Time, limit Limit) {
	if limit.RefillTokens <= 0 || limit.RefillPeriod <= 0 {
		return
	}
	interval := limit.RefillPeriod / time.Duration(limit.RefillTokens)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	elapsed := now.Sub(b.last)
	if elapsed < interval {
		return
	}
	n := int64(elapsed / interval)
	b.tokens += n
	if b.tokens >= limit.Capacity {
		b.tokens = limit.Capacity
		b.last = now
		return
	}
	b.last = b.last.Add(time.Duration(n) * interval)
}

// Store is the concurrent bucket registry. Bucket lookup takes a short
// registry lock; accounting takes only the per-bucket lock, so unrelated
// clients never contend on each other's admission checks.
type Store struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	buckets map[Key]*entry
	lru     *list.List // front = most recently used
}

type entry struct {
	b    *bucket
	elem *list.Element // value is the Key
}

// NewStore creates a bucket registry with the given configuration.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[Key]*entry),
		lru:     list.New(),
	}
}

// WithClock replaces the store's clock. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Enabled reports whether rate limiting is enabled.
func (s *Store) Enabled() bool { return s.cfg.Enabled }

// TryConsume attempts to take one token from the bucket for key, creating
// the bucket (full) on first sight. Concurrent calls for the same key are
// linearized; when one token remains, exactly one caller wins it.
func (s *Store) TryConsume(key Key) Result {
	limit := s.cfg.limitFor(key.Class)
	if limit.Capacity <= 0 {
		return Result{Allowed: true, Limit: 0, Remaining: 0}
	}

	now := s.now()
	b := s.getOrCreate(key, limit, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now, limit)

	if b.tokens > 0 {
		b.tokens--
		return Result{Allowed: true, Limit: limit.Capacity, Remaining: b.tokens}
	}

	var wait time.Duration
	if limit.RefillTokens > 0 && limit.RefillPeriod > 0 {
		interval := limit.RefillPeriod / time.Duration(limit.RefillTokens)
		wait = interval - now.Sub(b.last)
		if wait < 0 {
			wait = 0
		}
	}
	return Result{Allowed: false, Limit: limit.Capacity, Remaining: 0, RetryAfter: wait}
}

// Stats returns the current token count and capacity for key without
// consuming. The bucket is created if absent.
func (s *Store) Stats(key Key) (available, capacity int64) {
	limit := s.cfg.limitFor(key.Class)
	now := s.now()
	b := s.getOrCreate(key, limit, now)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now, limit)
	return b.tokens, limit.Capacity
}

// getOrCreate returns the bucket for key, creating it exactly once under
// the registry write lock. New buckets start full.
func (s *Store) getOrCreate(key Key, limit Limit, now time.Time) *bucket {
	s.mu.RLock()
	e, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		s.touch(e)
		return e.b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have created it between the locks.
	if e, ok := s.buckets[key]; ok {
		s.lru.MoveToFront(e.elem)
		return e.b
	}

	b := &bucket{tokens: limit.Capacity, last: now}
	e = &entry{b: b, elem: s.lru.PushFront(key)}
	s.buckets[key] = e

	if s.cfg.MaxKeys > 0 && len(s.buckets) > s.cfg.MaxKeys {
		s.evictOldest()
	}
	return b
}

// touch marks an entry as recently used.
func (s *Store) touch(e *entry) {
	s.mu.Lock()
	s.lru.MoveToFront(e.elem)
	s.mu.Unlock()
}

// evictOldest removes the least recently used bucket. Called with the
// write lock held.
func (s *Store) evictOldest() {
	back := s.lru.Back()
	if back == nil {
		return
	}
	key := back.Value.(Key)
	s.lru.Remove(back)
	delete(s.buckets, key)
}

// ResetClient drops all buckets for one client identity across classes.
func (s *Store) ResetClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, class := range []Class{Global, Auth, Register} {
		key := Key{ClientID: clientID, Class: class}
		if e, ok := s.buckets[key]; ok {
			s.lru.Remove(e.elem)
			delete(s.buckets, key)
		}
	}
}

// Reset drops all buckets.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[Key]*entry)
	s.lru.Init()
}

// Len returns the number of tracked buckets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}
