package ports

import (
	"context"

	"github.com/spire-dev/spire/internal/domain"
)

// Lobby provisions accounts and characters before a bot joins the game.
type Lobby interface {
	// CreateDevAccount returns the account for a developer login, creating
	// it on first use.
	CreateDevAccount(ctx context.Context, devID string) (domain.Account, error)

	// ListCharacters returns the characters owned by the token's account.
	ListCharacters(ctx context.Context, token string) ([]domain.Character, error)

	// CreateCharacter creates a character for the token's account.
	CreateCharacter(ctx context.Context, token, name string, race domain.Race) (domain.Character, error)
}
