// Package password implements Argon2id password hashing and the signup
// password policy.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports digests produced with weaker parameters so a
// caller can re-hash after a successful login. [Argon2.DummyDigest] gives the
// unknown-identity path a digest to verify against.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords: callers supply plaintext and receive digests.
//   - Import any other stepAuth package.
//   - Log plaintext passwords.
package password
