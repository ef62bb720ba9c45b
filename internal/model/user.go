// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts come from two places: email/password registration (Provider
// "password", PasswordHash set) and OAuth sign-in (Provider "google",
// ProviderID holds Google's stable subject id). Email is unique across both
// so a person who registers and later uses Google lands on one row only if
// the provider matches; mixing providers on one email is rejected as a
// conflict.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Provider     string    `json:"provider"`
	ProviderID   string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)
