// Package variant renders study cards into the form shown in a lesson.
package variant

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/memory"
)

// Conjugator applies a grammar rule to a word. Rule tables are owned by the
// content store; ok is false when the rule cannot be applied.
type Conjugator interface {
	Conjugate(ruleID uuid.UUID, word string, pos domain.PartOfSpeech) (string, bool)
}

// Selector picks a presentation variant for cards the learner has started
// studying. New cards are always shown as stored.
type Selector struct {
	thresholds memory.Thresholds
	rng        *rand.Rand
	conjugator Conjugator
}

var _ knowledge.VariantSelector = (*Selector)(nil)

// NewSelector returns a selector. conjugator may be nil, in which case
// vocabulary cards are only ever reversed or shown as stored.
func NewSelector(thresholds memory.Thresholds, rng *rand.Rand, conjugator Conjugator) *Selector {
	return &Selector{
		thresholds: thresholds,
		rng:        rng,
		conjugator: conjugator,
	}
}

// Select implements knowledge.VariantSelector.
func (s *Selector) Select(card knowledge.StudyCard, lang domain.NativeLanguage, knownRules []domain.GrammarRuleCard) (domain.Card, bool) {
	m := card.Memory
	if !m.IsKnownCard(s.thresholds) && !m.IsInProgress(s.thresholds) {
		return card.Card, true
	}

	switch c := card.Card.(type) {
	case domain.VocabularyCard:
		if s.rng.Intn(2) == 0 {
			reversed, err := c.Reverse()
			if err != nil {
				return nil, false
			}
			return reversed, true
		}
		if withRule, ok := s.applyRule(c, lang, knownRules); ok {
			return withRule, true
		}
		return c, true
	case domain.KanjiCard:
		return c, true
	case domain.GrammarRuleCard:
		return c, true
	default:
		return nil, false
	}
}

func (s *Selector) applyRule(c domain.VocabularyCard, lang domain.NativeLanguage, knownRules []domain.GrammarRuleCard) (domain.VocabularyCard, bool) {
	if s.conjugator == nil || c.PartOfSpeech == "" {
		return c, false
	}

	var rules []domain.GrammarRuleCard
	for _, r := range knownRules {
		if r.AppliesTo(c.PartOfSpeech) {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		return c, false
	}
	rule := rules[s.rng.Intn(len(rules))]

	formatted, ok := s.conjugator.Conjugate(rule.RuleID, c.Word.Text(), c.PartOfSpeech)
	if !ok {
		return c, false
	}
	word, err := domain.NewQuestion(formatted)
	if err != nil {
		return c, false
	}
	meaning, err := domain.NewAnswer(ruleMeaning(lang, c.Meaning.Text(), rule.Title.Text()))
	if err != nil {
		return c, false
	}

	return domain.VocabularyCard{
		Word:         word,
		Meaning:      meaning,
		PartOfSpeech: c.PartOfSpeech,
		Examples:     c.Examples,
	}, true
}

func ruleMeaning(lang domain.NativeLanguage, meaning, rule string) string {
	switch lang {
	case domain.Russian:
		return fmt.Sprintf("Слово: %s с примененной грамматической конструкцией: %s", meaning, rule)
	default:
		return fmt.Sprintf("Word: %s with applied grammar rule: %s", meaning, rule)
	}
}
