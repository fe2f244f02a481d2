// Package httpapi exposes the engine as a JSON API on gin.
//
// Routes: POST /signup, POST /login, POST /verify-2fa, POST /logout,
// POST /verify-token, DELETE /delete-account, GET /me, GET /health and
// GET /metrics. DELETE /delete-account and GET /me require a token, and a
// token can only delete its own subject. Status codes derive from
// [stepAuth.OutcomeOf] only.
package httpapi
