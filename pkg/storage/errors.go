package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist or is not
	// visible under the bound tenant.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record with the given key already exists.
	ErrConflict = errors.New("record already exists")

	// ErrDenied is returned when a write is refused by the tenant policy:
	// no tenant bound, a nil tenant, or a row-level-security violation.
	ErrDenied = errors.New("write denied by tenant policy")
)
