// Package store provides SQLite-backed persistence for the onboarding DSL
// runtime.
//
// It holds five concerns behind one handle:
//   - Entities: generic entity/link rows driven by the engine's CRUD handler
//   - Document values: extraction results consumed by the value binder
//   - DSL sources: versioned DSL text with compile status
//   - Learned phrases: confirmed verb selections feeding the learned search
//     channels (with the true alternatives list, for calibration)
//   - Pattern embeddings: verb invocation-phrase vectors for the semantic
//     channel, via the sqlite-vec vec0 virtual table with a brute-force
//     fallback when the extension is unavailable
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - single-writer connection pool: SQLite allows one writer at a time
package store
