// Package store keeps the run journal in SQLite.
//
// Every invocation of the pass over a unit appends one run record holding
// the hash of the input document, the hash of the rewritten unit and the
// rewrite counts. The journal is append-only.
//
// # Ordering
//
// Runs are ordered by seq, a logical clock, and then by id. Queries never
// order by wall time, so two journals written by identical invocations list
// their runs identically.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
