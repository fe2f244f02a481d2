// Package stepAuth provides an email and password login engine with optional
// emailed two-factor codes, signed bearer tokens and a revocation ledger.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Login states
//
// Login moves an attempt from unauthenticated to credentials checked. An
// identity without 2FA is then authenticated and receives a token. An identity
// with 2FA gets a challenge: a six digit code is stored with a TTL, emailed,
// and the caller receives only the attempt id. [Engine.Redeem] consumes the
// challenge once and mints the token. Unknown emails, wrong passwords and
// missing challenges all surface as [ErrInvalidCredentials].
//
// # Architecture boundaries
//
// stepAuth is the public surface. It exposes [Engine], [Builder], [Config] and
// the store interfaces. Flow orchestration, the Redis stores, rate limiting
// and audit dispatch live under internal/ and are never exported. Relational
// and in-memory identity repositories live in store/.
//
// # What this package must NOT do
//
//   - Return password digests or 2FA codes from any public method.
//   - Perform I/O outside of Engine methods.
//   - Import any sub-package that re-imports stepAuth (no import cycles).
package stepAuth
