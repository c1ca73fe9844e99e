// Package store provides SQLite-backed durable storage for the sync engine.
//
// The store holds everything that must survive a restart:
//   - Credentials: the player identity and its opaque secret
//   - Pending turn: at most one played turn not yet confirmed by the service
//   - Pending scores: the score queue, in submission order
//   - Last handshake time: the since-timestamp of the next handshake
//
// Small values live in a key/value settings table; scores have their own
// table so queue order is explicit (ORDER BY seq).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads (CLI status) during writes
//   - synchronous=FULL: A confirmed write survives power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Writes are synchronous. The engine calls the store from its loop right
// next to the in-memory change it mirrors.
package store
