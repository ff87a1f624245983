package parser

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/keikaku/internal/domain"
)

// ruleNamespace scopes name-based grammar rule ids, so the same rule title
// always maps to the same rule id across imports.
var ruleNamespace = uuid.MustParse("6c3b0d1e-2f7a-4e58-9b1c-5d8e0f2a4c61")

// Card converts the entry into card content.
func (e Entry) Card() (domain.Card, error) {
	q, err := domain.NewQuestion(e.Question)
	if err != nil {
		return nil, err
	}
	a, err := domain.NewAnswer(e.Answer)
	if err != nil {
		return nil, err
	}

	switch e.Kind {
	case domain.KindVocabulary, "":
		return domain.VocabularyCard{
			Word:         q,
			Meaning:      a,
			PartOfSpeech: e.PartOfSpeech,
			Examples:     e.Examples,
		}, nil
	case domain.KindKanji:
		return domain.KanjiCard{Kanji: q, Description: a, Level: e.Level}, nil
	case domain.KindGrammar:
		return domain.GrammarRuleCard{
			RuleID:      uuid.NewSHA1(ruleNamespace, []byte(q.Text())),
			Title:       q,
			Description: a,
			ApplyTo:     e.ApplyTo,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, e.Kind)
	}
}
