// Package memory provides an in-memory tenant-scoped record store for
// tests and lightweight deployments. It enforces the same visibility rules
// as the PostgreSQL row-level-security policies: every read is filtered to
// the tenant bound in the context, and a request with no bound tenant sees
// no tenant-scoped rows unless it carries the global-admin capability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/transer/vortice/pkg/storage"
)

// Store is an in-memory tenant-scoped record store.
type Store struct {
	mu      sync.RWMutex
	records map[string]storage.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]storage.Record)}
}

// Put stores a record owned by the tenant bound in the context. Writing
// without a bound tenant is denied unless the caller is a global admin, in
// which case the record keeps its explicit TenantID.
func (s *Store) Put(ctx context.Context, rec storage.Record) error {
	t, ok := storage.TenantFromContext(ctx)
	if !ok {
		return storage.ErrDenied
	}
	if !t.GlobalAdmin {
		if t.ID == uuid.Nil {
			return storage.ErrDenied
		}
		rec.TenantID = t.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return storage.ErrConflict
	}
	s.records[rec.ID] = rec
	return nil
}

// Get retrieves a record by ID. A record outside the bound tenant is
// indistinguishable from a missing one.
func (s *Store) Get(ctx context.Context, id string) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists || !visible(ctx, rec) {
		return storage.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

// List returns all records visible under the bound tenant, ordered by ID.
func (s *Store) List(ctx context.Context) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.Record
	for _, rec := range s.records {
		if visible(ctx, rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// visible applies the row filter: global admin sees everything, a bound
// tenant sees its own rows, everyone else sees nothing.
func visible(ctx context.Context, rec storage.Record) bool {
	t, ok := storage.TenantFromContext(ctx)
	if !ok {
		return false
	}
	if t.GlobalAdmin {
		return true
	}
	return t.ID != uuid.Nil && rec.TenantID == t.ID
}
