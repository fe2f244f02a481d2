// Package internal contains helpers that are private to stepAuth: 2FA code
// and attempt id generation, and token fingerprints.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - stores: Redis-backed challenge store and revocation ledger
//   - rate: Redis fixed-window failed-login counters
//   - config: environment configuration for the stepauthd binary
//   - httpapi: gin transport for the stepauthd binary
//   - telemetry: OpenTelemetry tracer provider setup
//
// # What this package must NOT do
//
//   - Export types that appear in the public stepAuth API.
//   - Be imported by any package outside the stepAuth module.
package internal
