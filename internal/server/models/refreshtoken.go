package models

import "time"

// RefreshToken is a server-stored, single-use token that can be exchanged
// for a new token pair until Expires.
type RefreshToken struct {
	ID        string
	UserID    string
	UserName  string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
