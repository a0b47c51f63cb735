// Package store provides Postgres-backed persistence for kindred's core
// tables via bun.
//
// It contains concrete implementations of the domain storage interfaces for:
//   - profiles (ProfileRepo), including the published encryption key column
//   - matches (MatchRepo)
//   - messages (MessageRepo)
//
// EnsureSchema bootstraps the tables and the insert-notification trigger the
// change feed listens on. In-memory counterparts for tests live in
// store/memory.
package store
