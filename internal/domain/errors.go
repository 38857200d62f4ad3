package domain

import "errors"

// Domain errors can be checked with errors.Is.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("spire: invalid configuration")

	// ErrNoToken is returned when an account has no lobby token.
	ErrNoToken = errors.New("spire: account has no token")

	// ErrLobby is returned when the lobby rejects a request.
	ErrLobby = errors.New("spire: lobby request failed")

	// ErrBotStopped is returned when a bot stops because of a dispatch error.
	ErrBotStopped = errors.New("spire: bot stopped")
)
