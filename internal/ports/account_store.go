package ports

import (
	"context"

	"github.com/spire-dev/spire/internal/domain"
)

// AccountStore caches provisioned accounts between runs, keyed by dev id.
type AccountStore interface {
	// Load returns every cached account.
	// Returns an empty map and nil error if nothing has been saved.
	Load(ctx context.Context) (map[string]domain.Account, error)

	// Save persists the accounts atomically, replacing the previous set.
	Save(ctx context.Context, accounts map[string]domain.Account) error
}
