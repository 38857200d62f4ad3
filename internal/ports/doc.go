// Package ports defines the interfaces the bot runner needs from the
// outside world.
//
//   - [Lobby]: provisions accounts and characters
//   - [AccountStore]: caches accounts between runs
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// internal/bot depends only on these interfaces. internal/adapters holds
// the HTTP and file system implementations.
package ports
