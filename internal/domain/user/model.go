package user

import "time"

// User is a registered account in the credential store. Records are created at
// registration and never mutated or deleted afterwards.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
