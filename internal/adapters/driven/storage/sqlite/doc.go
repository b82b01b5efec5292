// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - TaskStore: pending tasks, the id nonce and firing history
//   - EngineStore: arbitrage engine state and balances
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.arbiter/data/arbiter.db
//
// # Thread Safety
//
// All operations are thread-safe. The store holds a single connection in WAL
// mode, so statements are serialised.
package sqlite
