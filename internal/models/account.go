package models

import "time"

// Account is a login identity owning one ledger.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AccountInfo is the public view of an account.
type AccountInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// Info strips credentials.
func (a Account) Info() AccountInfo {
	return AccountInfo{ID: a.ID, Username: a.Username, FullName: a.FullName}
}
