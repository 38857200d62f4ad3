package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spire-dev/spire/internal/domain"
)

const accountsFileName = "accounts.json"

// AccountFileStore implements ports.AccountStore using a JSON file keyed by dev id.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore creates a store that keeps its file in dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

type accountsFile struct {
	Accounts []domain.AccountMeta `json:"accounts"`
}

// Load reads every cached account.
// Returns an empty map and nil error if no file exists.
func (s *AccountFileStore) Load(ctx context.Context) (map[string]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.Account{}, nil
		}
		return nil, err
	}

	var file accountsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", accountsFileName, err)
	}

	out := make(map[string]domain.Account, len(file.Accounts))
	for _, m := range file.Accounts {
		if m.DevID == "" {
			continue
		}
		out[m.DevID] = m.ToAccount()
	}
	return out, nil
}

// Save replaces the cached accounts atomically.
func (s *AccountFileStore) Save(ctx context.Context, accounts map[string]domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	file := accountsFile{Accounts: make([]domain.AccountMeta, 0, len(accounts))}
	for devID, acc := range accounts {
		if acc.DevID == "" {
			acc.DevID = devID
		}
		file.Accounts = append(file.Accounts, acc.ToMeta())
	}
	sort.Slice(file.Accounts, func(i, j int) bool {
		return file.Accounts[i].DevID < file.Accounts[j].DevID
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the accounts file.
func (s *AccountFileStore) Path() string {
	return filepath.Join(s.dir, accountsFileName)
}
