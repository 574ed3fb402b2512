package ratelimit

import (
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Enabled:  true,
		MaxKeys:  1000,
		Global:   Limit{Capacity: 100, RefillTokens: 100, RefillPeriod: time.Minute},
		Auth:     Limit{Capacity: 5, RefillTokens: 5, RefillPeriod: time.Minute},
		Register: Limit{Capacity: 3, RefillTokens: 3, RefillPeriod: time.Hour},
	}
}

func TestClassifyPath(t *testing.T) {
	cases := []struct {
		path string
		want Class
	}{
		{"/api/v1/auth/login", Auth},
		{"/api/v1/auth/register", Register},
		{"/api/v1/offices", Global},
		{"/healthz", Global},
	}
	for _, tc := range cases {
		if got := ClassifyPath(tc.path); got != tc.want {
			t.Errorf("ClassifyPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4321"

	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("peer address: got %q, want %q", got, "10.0.0.1")
	}

	r.Header.Set("X-Real-IP", "172.16.0.9")
	if got := ClientIP(r); got != "172.16.0.9" {
		t.Errorf("X-Real-IP: got %q, want %q", got, "172.16.0.9")
	}

	// X-Forwarded-For takes priority; first entry wins.
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("X-Forwarded-For: got %q, want %q", got, "203.0.113.7")
	}
}

func TestTryConsume_DrainToZero(t *testing.T) {
	s := NewStore(testConfig())
	key := Key{ClientID: "1.2.3.4", Class: Auth}

	for i := 0; i < 5; i++ {
		res := s.TryConsume(key)
		if !res.Allowed {
			t.Fatalf("call %d: denied, want allowed", i+1)
		}
		if res.Remaining < 0 || res.Remaining > res.Limit {
			t.Fatalf("call %d: remaining %d outside [0, %d]", i+1, res.Remaining, res.Limit)
		}
	}

	res := s.TryConsume(key)
	if res.Allowed {
		t.Fatal("6th call allowed, want denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("denied result RetryAfter = %v, want > 0", res.RetryAfter)
	}
}

func TestTryConsume_NoOverAdmissionConcurrent(t *testing.T) {
	s := NewStore(testConfig())
	key := Key{ClientID: "9.9.9.9", Class: Auth}

	const n = 50
	var allowed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.TryConsume(key).Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Errorf("allowed = %d, want exactly 5 (capacity)", got)
	}
}

func TestRefill_Proportional(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	s := NewStore(testConfig()).WithClock(func() time.Time { return clock })
	key := Key{ClientID: "5.5.5.5", Class: Auth} // 5 tokens / 60s

	// Drain.
	for i := 0; i < 5; i++ {
		s.TryConsume(key)
	}
	if s.TryConsume(key).Allowed {
		t.Fatal("bucket not drained")
	}

	// 12 simulated seconds: one token back.
	clock = now.Add(12 * time.Second)
	if !s.TryConsume(key).Allowed {
		t.Error("no token after 12s, want 1 (proportional refill)")
	}
	if s.TryConsume(key).Allowed {
		t.Error("second token granted after 12s, want exactly 1")
	}

	// Full period from the start: back to capacity, never beyond.
	clock = now.Add(10 * time.Minute)
	avail, capacity := s.Stats(key)
	if avail != capacity {
		t.Errorf("available = %d, want capacity %d", avail, capacity)
	}
	for i := 0; i < 5; i++ {
		if !s.TryConsume(key).Allowed {
			t.Fatalf("call %d after full refill denied", i+1)
		}
	}
	if s.TryConsume(key).Allowed {
		t.Error("refill exceeded capacity")
	}
}

func TestBuckets_IndependentPerClient(t *testing.T) {
	s := NewStore(testConfig())
	a := Key{ClientID: "1.1.1.1", Class: Auth}
	b := Key{ClientID: "2.2.2.2", Class: Auth}

	for i := 0; i < 5; i++ {
		s.TryConsume(a)
	}
	if s.TryConsume(a).Allowed {
		t.Fatal("client a not exhausted")
	}
	if !s.TryConsume(b).Allowed {
		t.Error("client b throttled by client a's bucket")
	}
}

func TestBuckets_IndependentPerClass(t *testing.T) {
	s := NewStore(testConfig())
	ip := "3.3.3.3"

	for i := 0; i < 5; i++ {
		s.TryConsume(Key{ClientID: ip, Class: Auth})
	}
	if s.TryConsume(Key{ClientID: ip, Class: Auth}).Allowed {
		t.Fatal("auth bucket not exhausted")
	}
	if !s.TryConsume(Key{ClientID: ip, Class: Global}).Allowed {
		t.Error("global bucket affected by auth exhaustion")
	}
}

func TestLRUEviction_Bounded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxKeys = 10
	s := NewStore(cfg)

	for i := 0; i < 100; i++ {
		s.TryConsume(Key{ClientID: string(rune('a' + i%26)) + string(rune('0' + i/26)), Class: Global})
	}
	if got := s.Len(); got > 10 {
		t.Errorf("registry holds %d buckets, want <= 10", got)
	}
}

func TestResetClient(t *testing.T) {
	s := NewStore(testConfig())
	key := Key{ClientID: "4.4.4.4", Class: Auth}

	for i := 0; i < 5; i++ {
		s.TryConsume(key)
	}
	if s.TryConsume(key).Allowed {
		t.Fatal("bucket not exhausted")
	}

	s.ResetClient("4.4.4.4")
	if !s.TryConsume(key).Allowed {
		t.Error("reset client still throttled")
	}
}

func TestGetOrCreate_SingleBucketUnderRace(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(testConfig()).WithClock(func() time.Time { return fixed })
	key := Key{ClientID: "7.7.7.7", Class: Global}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.TryConsume(key)
		}()
	}
	wg.Wait()

	if got := s.Len(); got != 1 {
		t.Errorf("registry holds %d buckets for one key, want 1", got)
	}
	// 20 concurrent first-touch consumers must have shared one bucket.
	avail, _ := s.Stats(key)
	if avail != 100-20 {
		t.Errorf("available = %d, want %d", avail, 100-20)
	}
}
