// Package memory provides process-local implementations of the stepAuth
// storage interfaces.
//
// Every store guards one map with one sync.RWMutex: lookups share the read
// lock, and anything that writes (including the compare-and-delete in
// ChallengeStore.Redeem) takes the write lock, so the single-winner redeem
// guarantee holds within one process.
//
// Expiry is evaluated lazily against an injectable clock. Expired entries are
// removed when they are next touched.
//
// # What this package must NOT do
//
//   - Share state across processes. Use the Redis and Postgres backends for that.
//   - Store raw bearer tokens. The ledger keys on the token fingerprint.
package memory
