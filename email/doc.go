// Package email provides stepAuth.EmailClient implementations: a Postmark
// HTTP client for production, a zap-backed client for local development and
// an in-memory Recorder for tests and examples.
//
// # What this package must NOT do
//
//   - Retry. A failed send surfaces to the engine, which reports it and lets
//     the stored challenge expire.
//   - Log message bodies outside LogClient. Bodies carry 2FA codes.
package email
