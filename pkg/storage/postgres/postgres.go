// Package postgres provides the PostgreSQL tenant-scoped storage layer.
// It uses pgx/v5 for connection pooling and PostgreSQL row-level security
// for tenant isolation: every tenant-scoped query runs inside a transaction
// whose session variables carry the bound tenant, and the table policies
// default to denying all rows when no tenant is bound.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transer/vortice/pkg/storage"
)

// Config holds PostgreSQL connection and behavior settings.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxConns is the maximum number of pooled connections (default: 25).
	MaxConns int32

	// MinConns is the minimum number of idle connections (default: 5).
	MinConns int32

	// MaxConnLifetime is the maximum connection lifetime (default: 5 minutes).
	MaxConnLifetime time.Duration

	// MigrateOnStart runs schema migrations automatically at startup.
	MigrateOnStart bool
}

// defaults applies default values for unset configuration fields.
func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MinConns == 0 {
		c.MinConns = 5
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
}

// Store is a PostgreSQL-backed tenant-scoped store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store with the given configuration. If MigrateOnStart is
// true, schema migrations (including the row-level-security policies) are
// applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for collaborators sharing the database
// (the identity store).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// WithTenant runs fn inside a transaction whose session variables carry
// the tenant bound in ctx. set_config(..., true) is transaction-local, so
// the binding dies with the transaction on every exit path and can never
// leak to a pooled connection reused by another request. With no bound
// tenant no variable is set and the row-level-security policies hide every
// tenant-scoped row.
func (s *Store) WithTenant(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if t, ok := storage.TenantFromContext(ctx); ok {
		if t.GlobalAdmin {
			if _, err := tx.Exec(ctx, "SELECT set_config('app.is_global_admin', 'on', true)"); err != nil {
				return fmt.Errorf("binding global admin: %w", err)
			}
		} else if t.ID != uuid.Nil {
			if _, err := tx.Exec(ctx, "SELECT set_config('app.current_tenant_id', $1, true)", t.ID.String()); err != nil {
				return fmt.Errorf("binding tenant: %w", err)
			}
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isDuplicateKey reports whether err is a unique constraint violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isRLSViolation reports whether err is a row-level-security policy
// rejection of a new row.
func isRLSViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42501"
}
