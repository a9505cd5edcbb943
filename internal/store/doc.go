// Package store provides the SQLite journal of preprocessing runs.
//
// The journal is append-only:
//   - Runs: one row per pipeline invocation, with the config fingerprint
//   - Artifacts: every artifact processed, in processing order
//   - Conditions: every condition name defined, from configuration or from
//     a directive in an artifact
//
// Because directives propagate across artifacts, the processing order is
// part of a run's meaning. Artifacts carry the run's logical seq and all
// reads ORDER BY seq, so a journal read back shows exactly which artifact
// could see which condition.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Writes use ON CONFLICT DO NOTHING, so recording the same artifact or
// condition twice is harmless.
package store
