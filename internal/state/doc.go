// Package state persists launch history and update-check bookkeeping in
// a local SQLite database. It is strictly best-effort infrastructure: the
// run command logs and continues when the database is unavailable, so a
// broken state file can never block a launch.
package state
