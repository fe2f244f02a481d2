// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRedeem, RunVerify, RunLogout, RunSignup,
// RunDeleteAccount) accepts a typed dependency struct and returns results
// without side effects beyond those dependencies. This keeps the Engine thin
// and lets every branch of the login state machine be tested with fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the identity store, challenge store,
// revocation ledger, token manager, email client, audit dispatcher and
// metrics. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import stepAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
