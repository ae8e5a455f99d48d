package domain

import "time"

// Account is a backend user that can be exchanged for a credential.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
