// Package admission sequences every inbound request through the gateway's
// admission protocol: rate-limit, authenticate, bind tenant, authorize,
// and only then business logic.
//
// The stage order is a contract. Rate limiting runs first so that
// unauthenticated abuse (credential stuffing against the login endpoint)
// is throttled before any token work. Tenant binding runs after
// authentication and before any storage access, so every query in the
// request is implicitly scoped to the caller's office. Public endpoints
// skip the bind and authorize stages but never the rate limiter.
//
// Each stage either proceeds or rejects with a terminal JSON response; the
// pipeline short-circuits on the first rejection. Any unexpected failure
// is caught at the pipeline boundary and surfaced as a generic 500:
// ambiguity about identity, tenant, or quota always resolves to denial.
package admission
