// Package domain contains the entities the load-test bots work with.
//
// # Entities
//
//   - [Account]: a lobby account and its token
//   - [Character]: a character selected for the game login
//
// Each entity has a Meta form carrying the JSON tags used by the lobby API
// and the account cache. The package has no dependencies on transport or
// storage.
package domain
