// Package auth turns bearer tokens into authorization-ready principals.
//
// The Resolver verifies a token with the token codec, then looks the
// subject up in the identity store so that revoked or locked accounts lose
// access even while their tokens are unexpired. Authorization checks
// (HasRole, HasAccessToTenant) are pure functions over the resolved
// principal and fail closed: a nil principal or absent tenant never grants
// access.
package auth
