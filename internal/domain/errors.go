package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateCard   = errors.New("duplicate card")
	ErrCardNotFound    = errors.New("card not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrUnknownKind     = errors.New("unknown card kind")
)

// DuplicateCardError is returned when a card with the same question text
// already exists in a knowledge set.
type DuplicateCardError struct {
	Question Question
}

func (e *DuplicateCardError) Error() string {
	return fmt.Sprintf("card with question '%s' already exists", e.Question)
}

func (e *DuplicateCardError) Is(target error) bool {
	return target == ErrDuplicateCard
}

// CardNotFoundError is returned when an operation names a card id that is
// not part of the knowledge set.
type CardNotFoundError struct {
	CardID CardID
}

func (e *CardNotFoundError) Error() string {
	return fmt.Sprintf("card with id %s not found", e.CardID)
}

func (e *CardNotFoundError) Is(target error) bool {
	return target == ErrCardNotFound
}
