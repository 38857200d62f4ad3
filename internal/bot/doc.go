// Package bot drives simulated players against a game server.
//
// A Runner provisions each bot through the lobby, logs it in over a
// session and keeps it connected for the configured duration. Bots stop
// on the first dispatch error.
package bot
