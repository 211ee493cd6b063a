// Package model defines domain entities for the application.
package model

import "time"

// User is a local account keyed by the email of a verified identity.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	PasswordHash string    `json:"-"` // legacy column, never serialized
	CreatedAt    time.Time `json:"created_at"`
}
