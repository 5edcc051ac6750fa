package models

import "time"

// Session holds the in-memory state for one interacting user. Sessions are
// created on first contact and are never persisted; a process restart
// starts everyone from scratch.
type Session struct {
	ID         string    `json:"id"`
	Language   string    `json:"language,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`

	// Pending is the session's single open cleaning offer, if any.
	Pending *PendingTransaction `json:"-"`
}
