package knowledge

import (
	"slices"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/memory"
)

// VariantSelector renders a concrete form of a card for presentation.
// It returns false when no valid rendering exists; the card is then left out
// of the lesson.
type VariantSelector interface {
	Select(card StudyCard, lang domain.NativeLanguage, knownRules []domain.GrammarRuleCard) (domain.Card, bool)
}

// VariantSelectorFunc adapts a function to VariantSelector.
type VariantSelectorFunc func(card StudyCard, lang domain.NativeLanguage, knownRules []domain.GrammarRuleCard) (domain.Card, bool)

func (f VariantSelectorFunc) Select(card StudyCard, lang domain.NativeLanguage, knownRules []domain.GrammarRuleCard) (domain.Card, bool) {
	return f(card, lang, knownRules)
}

// AsIs renders every card with its stored content.
var AsIs = VariantSelectorFunc(func(card StudyCard, _ domain.NativeLanguage, _ []domain.GrammarRuleCard) (domain.Card, bool) {
	return card.Card, true
})

// LessonItem is one card to present in a lesson, already rendered.
type LessonItem struct {
	ID   domain.CardID
	Card domain.Card
}

// byNextReview returns all cards ordered by next review date, unscheduled
// cards first. Ties are broken by id.
func (k *KnowledgeSet) byNextReview() []StudyCard {
	cards := k.Cards()
	slices.SortStableFunc(cards, func(a, b StudyCard) int {
		return memory.CompareNextReview(a.Memory, b.Memory)
	})
	return cards
}

// FixationCards returns the struggling cards for a fixation session:
// low-stability or high-difficulty cards ordered by next review date
// descending, capped at HardCardsLimit.
func (k *KnowledgeSet) FixationCards() []StudyCard {
	th := k.cfg.Thresholds
	var cards []StudyCard
	for _, c := range k.byNextReview() {
		if c.Memory.IsStruggling(th) {
			cards = append(cards, c)
		}
	}
	// TODO: confirm with product whether furthest-due-first is intended here.
	slices.Reverse(cards)
	if limit := max(k.cfg.HardCardsLimit, 0); len(cards) > limit {
		cards = cards[:limit]
	}
	return cards
}

// CardsToFixation returns the fixation cards keyed by id.
func (k *KnowledgeSet) CardsToFixation() map[domain.CardID]domain.Card {
	cards := k.FixationCards()
	out := make(map[domain.CardID]domain.Card, len(cards))
	for _, c := range cards {
		out[c.ID] = c.Card
	}
	return out
}

// LessonCards selects and renders the cards of a regular lesson:
//  1. due struggling cards;
//  2. new cards filling the remaining NewCardsLimit slots;
//  3. every due card that is in progress or known.
//
// The result is shuffled. Cards the selector cannot render are dropped.
func (k *KnowledgeSet) LessonCards(lang domain.NativeLanguage, selector VariantSelector) []LessonItem {
	if selector == nil {
		selector = AsIs
	}
	th := k.cfg.Thresholds
	now := k.now()
	all := k.byNextReview()

	var picked []StudyCard
	for _, c := range all {
		if c.Memory.IsDue(now) && c.Memory.IsStruggling(th) {
			picked = append(picked, c)
		}
	}

	if len(picked) < k.cfg.NewCardsLimit {
		allowed := k.cfg.NewCardsLimit - len(picked)
		for _, c := range all {
			if allowed == 0 {
				break
			}
			if c.Memory.IsNew() {
				picked = append(picked, c)
				allowed--
			}
		}
	}

	for _, c := range all {
		if c.Memory.IsDue(now) && (c.Memory.IsInProgress(th) || c.Memory.IsKnownCard(th)) {
			picked = append(picked, c)
		}
	}

	k.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	knownRules := k.KnownRules()
	seen := make(map[domain.CardID]struct{}, len(picked))
	items := make([]LessonItem, 0, len(picked))
	for _, c := range picked {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		rendered, ok := selector.Select(c, lang, knownRules)
		if !ok {
			continue
		}
		items = append(items, LessonItem{ID: c.ID, Card: rendered})
	}
	return items
}

// CardsToLesson returns the lesson cards keyed by id. Map order carries no
// meaning; use LessonCards for presentation order.
func (k *KnowledgeSet) CardsToLesson(lang domain.NativeLanguage, selector VariantSelector) map[domain.CardID]domain.Card {
	items := k.LessonCards(lang, selector)
	out := make(map[domain.CardID]domain.Card, len(items))
	for _, it := range items {
		out[it.ID] = it.Card
	}
	return out
}

// KnownRules returns the grammar rules present in the set, ordered by card id.
func (k *KnowledgeSet) KnownRules() []domain.GrammarRuleCard {
	var rules []domain.GrammarRuleCard
	for _, c := range k.Cards() {
		switch card := c.Card.(type) {
		case domain.GrammarRuleCard:
			rules = append(rules, card)
		case domain.VocabularyCard, domain.KanjiCard:
		}
	}
	return rules
}
