package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// RoleNationalAdmin grants access across all tenants.
const RoleNationalAdmin = "ADMIN_NATIONAL"

// Principal is an authenticated caller, resolved per-request from a
// verified token plus the identity store. It is immutable for the rest of
// the request.
type Principal struct {
	// ID is the identity store's numeric user id.
	ID int64

	// Username is the login name, also the token subject.
	Username string

	// TenantID is the office the principal belongs to. uuid.Nil means
	// the principal has no tenant affiliation.
	TenantID uuid.UUID

	// Roles is the current role set from the identity store, not the token.
	Roles []string

	Active bool
	Locked bool
}

// Sentinel errors. Both surface as 401; the distinction is for logging.
var (
	// ErrInvalidToken means a bearer token was presented but failed
	// verification, or a refresh token was used as an access token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrAccountUnavailable means the token verified but the account is
	// missing, inactive, or locked.
	ErrAccountUnavailable = errors.New("account unavailable")
)

// IdentityStore is the external collaborator that owns user records.
type IdentityStore interface {
	// FindBySubject returns the principal for a token subject, or
	// storage.ErrNotFound when no such account exists.
	FindBySubject(ctx context.Context, subject string) (*Principal, error)
}

// HasRole reports whether the principal holds the exact role. Fails closed
// on a nil principal.
func HasRole(p *Principal, role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAccessToTenant reports whether the principal may act on the given
// tenant: either it holds the national-admin role, or its own tenant
// matches. A nil principal or absent tenant never grants access.
func HasAccessToTenant(p *Principal, tenantID uuid.UUID) bool {
	if p == nil || tenantID == uuid.Nil {
		return false
	}
	if HasRole(p, RoleNationalAdmin) {
		return true
	}
	return p.TenantID == tenantID
}

// principalKey is a private type for the principal context key.
type principalKey struct{}

// SetPrincipal stores the resolved principal in the context.
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the resolved principal.
// Returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return v
	}
	return nil
}
