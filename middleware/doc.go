// Package middleware guards HTTP handlers with [stepAuth.Engine.Verify].
//
// [Guard] wraps a net/http handler and [RequireToken] is the gin equivalent.
// Both take the token from the Authorization bearer header, falling back to
// the jwt cookie, and store the verified claims in the request context.
//
// Revocation, signature and expiry checks all happen inside the engine; this
// package only maps the outcome to a status code.
package middleware
