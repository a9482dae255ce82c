package models

import "time"

// User is a registered chat participant. PasswordHash holds a bcrypt digest.
type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	CreatedAt    time.Time
}
