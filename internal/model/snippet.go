// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Snippet represents a saved, shareable piece of text.
//
// ID is either generated by the server (xid) or a custom id chosen by the
// author. OwnerID is empty for anonymous snippets.
//
// Editing controls whether PUT /api/snippets/{id} is accepted. Only the
// owner (or, for anonymous snippets, any signed-in user) may flip it.
type Snippet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	Editing   bool      `json:"editing"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the snippet is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Snippet) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Anonymous reports whether the snippet was saved without an owner.
func (s *Snippet) Anonymous() bool {
	return s.OwnerID == ""
}
