package store

import (
	"errors"
	"fmt"

	"supportbot/internal/domain"
)

// Storage persists chat sessions and their ordered turns.
type Storage = domain.ConversationStore

var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrEmptySession = errors.New("empty session id")
)

// ValidateAppend checks the arguments every backend's Append receives.
func ValidateAppend(sessionID string, role domain.Role) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}
