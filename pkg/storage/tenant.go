package storage

import (
	"context"

	"github.com/google/uuid"
)

// Tenant is the request-scoped tenant binding consumed by storage
// implementations for row filtering.
type Tenant struct {
	// ID is the office the request is scoped to. uuid.Nil with
	// GlobalAdmin false means no rows are visible.
	ID uuid.UUID

	// GlobalAdmin lifts the tenant filter entirely.
	GlobalAdmin bool
}

// tenantKey is a private type for the tenant context key, preventing
// collisions with other packages.
type tenantKey struct{}

// BindTenant injects a tenant binding into the context. Because the
// binding lives in the request context, it cannot outlive the request or
// leak across pooled connections.
func BindTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// TenantFromContext extracts the tenant binding from the context.
// ok is false when no tenant was bound (anonymous or public request).
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	if v, ok := ctx.Value(tenantKey{}).(Tenant); ok {
		return v, true
	}
	return Tenant{}, false
}
