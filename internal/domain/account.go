package domain

import "fmt"

// Account is a provisioned lobby account.
type Account struct {
	// ID is the lobby's account identifier
	ID int64

	// DevID is the developer login the account was created for
	DevID string

	// Token authenticates lobby calls and the game login
	Token string
}

// Valid returns ErrNoToken when the account cannot authenticate.
func (a Account) Valid() error {
	if a.Token == "" {
		return fmt.Errorf("%w: account %q", ErrNoToken, a.DevID)
	}
	return nil
}

// AccountMeta is the JSON form used by the lobby and the account cache.
type AccountMeta struct {
	ID    int64  `json:"account_id"`
	DevID string `json:"dev_id,omitempty"`
	Token string `json:"token"`
}

// ToAccount converts AccountMeta to an Account.
func (m AccountMeta) ToAccount() Account {
	return Account{ID: m.ID, DevID: m.DevID, Token: m.Token}
}

// ToMeta converts an Account to AccountMeta for JSON serialization.
func (a Account) ToMeta() AccountMeta {
	return AccountMeta{ID: a.ID, DevID: a.DevID, Token: a.Token}
}
