// Package ratelimit provides the per-client token-bucket admission limiter.
//
// Every inbound request is classified into a limit class (GLOBAL, AUTH,
// REGISTER) from its path and charged against a bucket keyed by
// (client identity, class). Buckets are created lazily, refill continuously
// on a pull basis, and are evicted in LRU order once the registry exceeds
// its configured bound, so a flood of spoofed client identities cannot grow
// memory without limit.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// Class classifies an endpoint for rate-limiting purposes.
type Class int

const (
	// Global applies to all endpoints not otherwise classified.
	Global Class = iota

	// Auth applies to login endpoints, which attract credential stuffing.
	Auth

	// Register applies to the registration endpoint.
	Register
)

// String returns the wire name of the class, as used in X-RateLimit-Type.
func (c Class) String() string {
	switch c {
	case Auth:
		return "AUTH"
	case Register:
		return "REGISTER"
	default:
		return "GLOBAL"
	}
}

// ClassifyPath maps a request path to its limit class.
func ClassifyPath(path string) Class {
	switch {
	case strings.Contains(path, "/auth/login"):
		return Auth
	case strings.Contains(path, "/auth/register"):
		return Register
	default:
		return Global
	}
}

// Key identifies one bucket: one client identity in one limit class.
type Key struct {
	ClientID string
	Class    Class
}

// Limit configures one limit class.
type Limit struct {
	// Capacity is the bucket size; buckets start full.
	Capacity int64 `yaml:"capacity"`

	// RefillTokens is the number of tokens added per RefillPeriod.
	RefillTokens int64 `yaml:"refill_tokens"`

	// RefillPeriod is the refill interval.
	RefillPeriod time.Duration `yaml:"refill_period"`
}

// Config holds the limiter configuration, loaded once at startup.
type Config struct {
	// Enabled turns the limiter on or off globally.
	Enabled bool `yaml:"enabled"`

	// MaxKeys bounds the number of tracked buckets per class; the least
	// recently used bucket is evicted beyond this. 0 means unbounded.
	MaxKeys int `yaml:"max_keys"`

	Global   Limit `yaml:"global"`
	Auth     Limit `yaml:"auth"`
	Register Limit `yaml:"register"`
}

// Defaults returns the default limiter configuration.
func Defaults() Config {
	return Config{
		Enabled:  true,
		MaxKeys:  100_000,
		Global:   Limit{Capacity: 100, RefillTokens: 100, RefillPeriod: time.Minute},
		Auth:     Limit{Capacity: 5, RefillTokens: 5, RefillPeriod: time.Minute},
		Register: Limit{Capacity: 3, RefillTokens: 3, RefillPeriod: time.Hour},
	}
}

// limitFor returns the limit for a class.
func (c Config) limitFor(class Class) Limit {
	switch class {
	case Auth:
		return c.Auth
	case Register:
		return c.Register
	default:
		return c.Global
	}
}

// Result is the outcome of one admission check.
type Result struct {
	// Allowed reports whether a token was consumed.
	Allowed bool

	// Limit is the bucket capacity for the matched class.
	Limit int64

	// Remaining is the token count left after this check.
	Remaining int64

	// RetryAfter is the wait until the next token becomes available.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// ClientIP extracts the rate-limit client identity from a request:
// the first X-Forwarded-For entry, then X-Real-IP, then the transport
// peer address. Forwarded headers are spoofable; deployments must strip
// them at the edge or accept per-spoofed-identity buckets.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
