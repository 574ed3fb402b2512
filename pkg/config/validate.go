package config

import (
	"errors"
	"fmt"

	"github.com/transer/vortice/pkg/ratelimit"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// token.secret is required and must be long enough for HMAC-SHA256.
	if len(c.Token.Secret) < 32 {
		errs = append(errs, fmt.Errorf("token.secret must be at least 32 bytes, got %d", len(c.Token.Secret)))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// Rate limit classes need a sensible shape when enabled.
	if c.RateLimit.Enabled {
		for _, class := range []struct {
			name  string
			limit ratelimit.Limit
		}{
			{"rate_limit.global", c.RateLimit.Global},
			{"rate_limit.auth", c.RateLimit.Auth},
			{"rate_limit.register", c.RateLimit.Register},
		} {
			if class.limit.Capacity < 0 {
				errs = append(errs, fmt.Errorf("%s.capacity must be >= 0, got %d", class.name, class.limit.Capacity))
			}
			if class.limit.Capacity > 0 && (class.limit.RefillTokens <= 0 || class.limit.RefillPeriod <= 0) {
				errs = append(errs, fmt.Errorf("%s needs refill_tokens and refill_period when capacity is set", class.name))
			}
		}
	}

	// Seeded users must each carry a username.
	for i, u := range c.Identity.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("identity.users[%d].username is required", i))
		}
	}

	return errors.Join(errs...)
}
