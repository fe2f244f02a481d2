// Package jwt mints and verifies the signed bearer tokens handed out after a
// successful login.
//
// Tokens carry only registered claims (sub, exp, iat, jti and optionally
// iss/aud). Verification pins the algorithm, requires exp and allows at most
// two minutes of leeway. Revocation is not this package's concern; callers
// check their ledger before calling [Manager.Verify].
package jwt
