// Package stores provides the invocation history layer. It includes
// SQLite-based storage (pure Go, WAL mode, foreign keys) with embedded
// migrations for runs, their timeline events and an audit trail of
// device changes.
package stores
