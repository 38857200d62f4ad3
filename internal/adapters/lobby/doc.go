// Package lobby implements ports.Lobby against the lobby's HTTP JSON API.
package lobby
