package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/storage"
)

// PostgresStore is a Store backed by the users table. Account lookups run
// outside the tenant-scoped transaction: identity resolution happens
// before a tenant is bound, and the users table carries no RLS policy.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = "id, username, office_id, roles, active, locked, password_hash"

// FindBySubject returns the principal for a username or email.
func (s *PostgresStore) FindBySubject(ctx context.Context, subject string) (*auth.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR lower(email) = lower($1)
	`, subject)
	p, _, err := scanUser(row)
	return p, err
}

// VerifyCredentials checks a username/password pair against the stored
// bcrypt hash.
func (s *PostgresStore) VerifyCredentials(ctx context.Context, username, password string) (*auth.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR lower(email) = lower($1)
	`, username)
	p, hash, err := scanUser(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	if !p.Active || p.Locked {
		return nil, ErrBadCredentials
	}
	return p, nil
}

// CreateUser inserts a new account with a freshly hashed password.
// Used by the registration endpoint.
func (s *PostgresStore) CreateUser(ctx context.Context, seed Seed) (*auth.Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var officeID uuid.UUID
	if seed.OfficeID != "" {
		officeID, err = uuid.Parse(seed.OfficeID)
		if err != nil {
			return nil, fmt.Errorf("parsing office_id: %w", err)
		}
	}
	var officeArg any
	if officeID != uuid.Nil {
		officeArg = officeID
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, office_id, roles)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING id
	`, seed.Username, seed.Email, string(hash), officeArg, seed.Roles).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return &auth.Principal{
		ID:       id,
		Username: seed.Username,
		TenantID: officeID,
		Roles:    append([]string(nil), seed.Roles...),
		Active:   true,
	}, nil
}

// scanUser reads one user row into a principal plus its password hash.
func scanUser(row pgx.Row) (*auth.Principal, string, error) {
	var (
		p        auth.Principal
		officeID *uuid.UUID
		hash     string
	)
	err := row.Scan(&p.ID, &p.Username, &officeID, &p.Roles, &p.Active, &p.Locked, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", storage.ErrNotFound
		}
		return nil, "", fmt.Errorf("scanning user: %w", err)
	}
	if officeID != nil {
		p.TenantID = *officeID
	}
	return &p, hash, nil
}
