// Package postgres implements stepAuth.IdentityRepository on PostgreSQL
// through pgx, and ships the schema as embedded golang-migrate migrations.
//
// The repository only issues single-statement queries; uniqueness of the
// email is enforced by the primary key, so concurrent signups for one email
// resolve to exactly one row and one ErrAlreadyExists.
package postgres
