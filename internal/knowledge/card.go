package knowledge

import (
	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/memory"
)

// StudyCard binds immutable card content to its mutable memory state.
type StudyCard struct {
	ID     domain.CardID
	Card   domain.Card
	Memory memory.State
}

// NewStudyCard allocates an id for card and starts it with an empty memory.
func NewStudyCard(card domain.Card) StudyCard {
	return StudyCard{
		ID:   domain.NewCardID(),
		Card: card,
	}
}

// Question is the uniqueness key of the card within a knowledge set.
func (c StudyCard) Question() domain.Question {
	return c.Card.Question()
}
