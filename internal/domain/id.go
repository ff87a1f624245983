package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// CardID identifies a study card. Ids are UUIDv7, so they sort by creation time.
type CardID = uuid.UUID

// UserID identifies a learner.
type UserID = uuid.UUID

// NewCardID allocates a fresh, time-ordered card id.
func NewCardID() CardID {
	return uuid.Must(uuid.NewV7())
}

// NewUserID allocates a fresh, time-ordered user id.
func NewUserID() UserID {
	return uuid.Must(uuid.NewV7())
}

// ParseCardID parses the canonical text form of a card id.
func ParseCardID(s string) (CardID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CardID{}, fmt.Errorf("invalid card id %q: %w", s, err)
	}
	return id, nil
}

// ParseUserID parses the canonical text form of a user id.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return id, nil
}
