// Package storage records journal events and answers "how many past events
// match this filter" for the statistics tokens.
//
// Drivers:
//   - "memory": process-local, rebuilt on every replay
//   - "file": JSON Lines log loaded into memory on open
//   - "sqlite": SQLite database file (modernc.org/sqlite via sqlx)
//
// Every driver records an event at most once per (source file, line), so a
// replay after restart does not double count.
package storage
