// Package identity provides the user account store consumed by the
// admission pipeline. Two implementations share one contract: a
// config-seeded in-memory store for tests and small deployments, and a
// PostgreSQL store for production. Passwords are stored as bcrypt hashes;
// plaintext is never kept after construction.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/storage"
)

// ErrBadCredentials is returned by VerifyCredentials for a wrong username
// or password. Callers must not reveal which of the two was wrong.
var ErrBadCredentials = errors.New("bad credentials")

// Store extends the resolver's read contract with credential verification
// for the login endpoint.
type Store interface {
	auth.IdentityStore

	// VerifyCredentials checks a username/password pair and returns the
	// matching principal. Inactive and locked accounts fail with
	// ErrBadCredentials just like wrong passwords.
	VerifyCredentials(ctx context.Context, username, password string) (*auth.Principal, error)

	// CreateUser registers a new account and returns its principal.
	// A taken username or email fails with storage.ErrConflict.
	CreateUser(ctx context.Context, seed Seed) (*auth.Principal, error)
}

// Seed describes one user for the in-memory store. OfficeID is the
// textual office UUID; empty means the user belongs to no office.
type Seed struct {
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	OfficeID string   `yaml:"office_id"`
	Roles    []string `yaml:"roles"`
	Locked   bool     `yaml:"locked"`
	Inactive bool     `yaml:"inactive"`
}

// record is one stored account.
type record struct {
	principal auth.Principal
	hash      []byte
	email     string
}

// MemoryStore is an in-memory Store seeded from configuration.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*record
	seq   int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store from user seeds. Passwords are hashed
// immediately.
func NewMemoryStore(seeds []Seed) (*MemoryStore, error) {
	s := &MemoryStore{users: make(map[string]*record, len(seeds))}
	for _, seed := range seeds {
		if err := s.Add(seed); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers one user. Usernames and emails are unique.
func (s *MemoryStore) Add(seed Seed) error {
	if seed.Username == "" {
		return errors.New("user seed missing username")
	}
	var officeID uuid.UUID
	if seed.OfficeID != "" {
		id, err := uuid.Parse(seed.OfficeID)
		if err != nil {
			return fmt.Errorf("user %s: parsing office_id: %w", seed.Username, err)
		}
		officeID = id
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[seed.Username]; exists {
		return storage.ErrConflict
	}
	if seed.Email != "" {
		for _, rec := range s.users {
			if strings.EqualFold(rec.email, seed.Email) {
				return storage.ErrConflict
			}
		}
	}
	s.seq++
	s.users[seed.Username] = &record{
		principal: auth.Principal{
			ID:       s.seq,
			Username: seed.Username,
			TenantID: officeID,
			Roles:    append([]string(nil), seed.Roles...),
			Active:   !seed.Inactive,
			Locked:   seed.Locked,
		},
		hash:  hash,
		email: seed.Email,
	}
	return nil
}

// CreateUser registers a new account, matching the PostgreSQL store's
// behavior for the registration endpoint.
func (s *MemoryStore) CreateUser(ctx context.Context, seed Seed) (*auth.Principal, error) {
	if err := s.Add(seed); err != nil {
		return nil, err
	}
	return s.FindBySubject(ctx, seed.Username)
}

// FindBySubject returns the principal for a username or email.
func (s *MemoryStore) FindBySubject(_ context.Context, subject string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.users[subject]; ok {
		return clone(rec), nil
	}
	for _, rec := range s.users {
		if rec.email != "" && strings.EqualFold(rec.email, subject) {
			return clone(rec), nil
		}
	}
	return nil, storage.ErrNotFound
}

// clone detaches the returned principal from the stored record.
func clone(rec *record) *auth.Principal {
	p := rec.principal
	p.Roles = append([]string(nil), rec.principal.Roles...)
	return &p
}

// VerifyCredentials checks a username/password pair.
func (s *MemoryStore) VerifyCredentials(ctx context.Context, username, password string) (*auth.Principal, error) {
	p, err := s.FindBySubject(ctx, username)
	if err != nil {
		// Burn a comparison anyway so a probe cannot distinguish unknown
		// users by response time.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrBadCredentials
	}

	s.mu.RLock()
	rec := s.users[p.Username]
	s.mu.RUnlock()

	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	if !p.Active || p.Locked {
		return nil, ErrBadCredentials
	}
	return p, nil
}

// dummyHash is a valid bcrypt hash of an unguessable value, used to keep
// unknown-user failures on the same code path cost as wrong passwords.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
