// Package store provides a SQLite-backed cache for fetched include text.
//
// Each row is keyed by the include source's (kind, identity) key and holds
// the zstd-compressed body, the content identity computed when it was
// fetched, and an expiry time. Expired rows are never returned; they are
// removed by PurgeExpired or overwritten by the next Put.
//
// The cache stores configuration text only. Compiled pipelines are never
// persisted.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
