package auth

import "time"

// Account represents a stored credential record.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	RoleName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
