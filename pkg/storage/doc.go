// Package storage provides the tenant context shared across storage
// implementations, plus sentinel errors.
//
// The admission pipeline binds the caller's tenant into the request
// context; storage implementations (memory, postgres) read it back and
// filter every row to that tenant. A request with no bound tenant and no
// global-admin capability sees no tenant-scoped rows at all (default deny).
package storage
