package session

import "github.com/google/uuid"

// NewID mints an unguessable session id. Ids are never reused: every state
// transition that needs one mints a fresh id.
func NewID() string {
	return uuid.NewString()
}

// NewState mints a CSRF state token bound to one pending login attempt.
func NewState() string {
	return uuid.NewString()
}
