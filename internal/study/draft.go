package study

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/keikaku/internal/domain"
)

// CardDraft is user input for a new card before it becomes domain content.
type CardDraft struct {
	Kind         domain.Kind           `validate:"required,oneof=vocabulary kanji grammar"`
	Question     string                `validate:"required"`
	Answer       string                `validate:"required"`
	PartOfSpeech domain.PartOfSpeech   `validate:"omitempty,oneof=noun verb i-adjective na-adjective adverb other"`
	Level        domain.JapaneseLevel  `validate:"omitempty,oneof=N5 N4 N3 N2 N1"`
	RuleID       string                `validate:"omitempty,uuid"`
	ApplyTo      []domain.PartOfSpeech `validate:"omitempty,dive,oneof=noun verb i-adjective na-adjective adverb other"`
	Examples     []domain.ExamplePhrase
}

// Card converts the draft into card content, trimming both sides.
func (d CardDraft) Card() (domain.Card, error) {
	q, err := domain.NewQuestion(d.Question)
	if err != nil {
		return nil, err
	}
	a, err := domain.NewAnswer(d.Answer)
	if err != nil {
		return nil, err
	}

	switch d.Kind {
	case domain.KindVocabulary:
		return domain.VocabularyCard{
			Word:         q,
			Meaning:      a,
			PartOfSpeech: d.PartOfSpeech,
			Examples:     d.Examples,
		}, nil
	case domain.KindKanji:
		return domain.KanjiCard{
			Kanji:       q,
			Description: a,
			Level:       d.Level,
		}, nil
	case domain.KindGrammar:
		ruleID := uuid.Must(uuid.NewV7())
		if d.RuleID != "" {
			if ruleID, err = uuid.Parse(d.RuleID); err != nil {
				return nil, fmt.Errorf("invalid rule id %q: %w", d.RuleID, err)
			}
		}
		return domain.GrammarRuleCard{
			RuleID:      ruleID,
			Title:       q,
			Description: a,
			ApplyTo:     d.ApplyTo,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, d.Kind)
	}
}
