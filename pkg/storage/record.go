package storage

import "github.com/google/uuid"

// Record is one tenant-owned row. Both store implementations enforce the
// same visibility rule on it: a record is only reachable under its own
// tenant binding or a global-admin binding.
type Record struct {
	ID       string
	TenantID uuid.UUID
	Payload  string
}
