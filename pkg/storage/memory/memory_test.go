package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/transer/vortice/pkg/storage"
)

func seededStore(t *testing.T, t1, t2 uuid.UUID) *Store {
	t.Helper()
	s := New()
	admin := storage.BindTenant(context.Background(), storage.Tenant{GlobalAdmin: true})
	for _, rec := range []storage.Record{
		{ID: "w1", TenantID: t1, Payload: "bogota stock"},
		{ID: "w2", TenantID: t1, Payload: "bogota returns"},
		{ID: "w3", TenantID: t2, Payload: "medellin stock"},
	} {
		if err := s.Put(admin, rec); err != nil {
			t.Fatalf("seeding %s: %v", rec.ID, err)
		}
	}
	return s
}

func TestTenantIsolation(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	s := seededStore(t, t1, t2)

	ctx1 := storage.BindTenant(context.Background(), storage.Tenant{ID: t1})
	ctx2 := storage.BindTenant(context.Background(), storage.Tenant{ID: t2})

	if got, _ := s.List(ctx1); len(got) != 2 {
		t.Errorf("tenant1 sees %d records, want 2", len(got))
	}
	if got, _ := s.List(ctx2); len(got) != 1 || got[0].ID != "w3" {
		t.Errorf("tenant2 sees %v, want only w3", got)
	}

	// Cross-tenant get looks like not-found.
	if _, err := s.Get(ctx2, "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-tenant Get = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx1, "w1"); err != nil {
		t.Errorf("own-tenant Get = %v, want nil", err)
	}
}

func TestGlobalAdmin_SeesAllTenants(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	s := seededStore(t, t1, t2)

	admin := storage.BindTenant(context.Background(), storage.Tenant{GlobalAdmin: true})
	if got, _ := s.List(admin); len(got) != 3 {
		t.Errorf("global admin sees %d records, want 3", len(got))
	}
}

func TestNoBinding_FailsClosed(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	s := seededStore(t, t1, t2)

	// No tenant bound at all: zero rows, never all rows.
	if got, _ := s.List(context.Background()); len(got) != 0 {
		t.Errorf("unbound List sees %d records, want 0", len(got))
	}
	if _, err := s.Get(context.Background(), "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unbound Get = %v, want ErrNotFound", err)
	}

	// Bound but nil tenant: same as unbound.
	nilCtx := storage.BindTenant(context.Background(), storage.Tenant{})
	if got, _ := s.List(nilCtx); len(got) != 0 {
		t.Errorf("nil-tenant List sees %d records, want 0", len(got))
	}

	// Writes are denied too.
	if err := s.Put(context.Background(), storage.Record{ID: "x"}); !errors.Is(err, storage.ErrDenied) {
		t.Errorf("unbound Put = %v, want ErrDenied", err)
	}
	if err := s.Put(nilCtx, storage.Record{ID: "x"}); !errors.Is(err, storage.ErrDenied) {
		t.Errorf("nil-tenant Put = %v, want ErrDenied", err)
	}
}

func TestPut_ForcesBoundTenant(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	s := New()

	// A tenant-bound writer cannot plant rows in another tenant.
	ctx1 := storage.BindTenant(context.Background(), storage.Tenant{ID: t1})
	if err := s.Put(ctx1, storage.Record{ID: "sneaky", TenantID: t2}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ctx2 := storage.BindTenant(context.Background(), storage.Tenant{ID: t2})
	if got, _ := s.List(ctx2); len(got) != 0 {
		t.Errorf("tenant2 sees %d planted records, want 0", len(got))
	}
	if got, _ := s.List(ctx1); len(got) != 1 {
		t.Errorf("tenant1 sees %d records, want 1", len(got))
	}
}

func TestPut_Conflict(t *testing.T) {
	t1 := uuid.New()
	s := New()
	ctx := storage.BindTenant(context.Background(), storage.Tenant{ID: t1})

	if err := s.Put(ctx, storage.Record{ID: "dup"}); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := s.Put(ctx, storage.Record{ID: "dup"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("second Put = %v, want ErrConflict", err)
	}
}
