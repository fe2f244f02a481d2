// Package stores provides the Redis-backed, short-lived stores behind 2FA
// login: the per-email challenge store and the token revocation ledger.
//
// # Design
//
// A challenge is a versioned binary record under <prefix>:<email> whose key
// TTL is the challenge lifetime. Redeem runs one Lua script that compares a
// digest of the presented (attempt id, code) pair and deletes on match, so
// comparison and consumption are a single atomic step and the comparison never
// reveals which of the two fields was wrong. Mismatches bump an attempt counter
// and burn the record at the configured limit.
//
// The revocation ledger stores one key per token fingerprint with a TTL equal
// to the token's remaining lifetime.
//
// # Architecture boundaries
//
// This package owns persistence and atomicity. It does NOT generate codes,
// hash tokens, or decide how errors surface to callers; those belong to the
// engine and internal/flows.
//
// # What this package must NOT do
//
//   - Import stepAuth or any sibling internal package.
//   - Log or expose codes or raw tokens.
package stores
