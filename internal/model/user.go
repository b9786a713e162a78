// Package model defines domain entities for the application.
package model

import "time"

// User is a registered account. PasswordHash holds an argon2id PHC string
// and is never rendered.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated user carried by a session.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	// SessionID identifies the issued session token for revocation.
	SessionID string `json:"-"`
}
