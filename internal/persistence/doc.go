// Package persistence keeps selected store state across process restarts.
//
// A Plugin registers stores on a data.Registry. Before a persisted store is
// created, its previously saved state is read from a Storage backend and
// merged over the reducer's initial state. Afterwards every effective change
// of the persisted projection is written back under a single storage key.
//
// Backends:
//   - MemoryStorage: in-process map, for tests and short-lived tools
//   - SQLStorage: SQLite (default), Postgres (pgx) or MySQL
//   - RedisStorage: go-redis client with an optional key prefix
package persistence
