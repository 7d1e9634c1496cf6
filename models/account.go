package models

import "time"

const (
	// MasterAccountUsername is the default username for the bootstrap account.
	MasterAccountUsername = "admin"
)

// Account is a registered user. Master accounts can manage other accounts;
// regular accounts own only their library, history and stats.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt hash, never exposed in API responses
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AccountStorage is the on-disk representation, including the password hash.
type AccountStorage struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToStorage converts an Account for persistence.
func (a Account) ToStorage() AccountStorage {
	return AccountStorage(a)
}

// ToAccount converts stored data back to an Account.
func (as AccountStorage) ToAccount() Account {
	return Account(as)
}
