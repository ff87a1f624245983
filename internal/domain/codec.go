package domain

import (
	"encoding/json"
	"fmt"
)

// cardEnvelope is the serialized form of a Card: a kind tag plus exactly one
// populated variant.
type cardEnvelope struct {
	Kind       Kind             `json:"kind"`
	Vocabulary *VocabularyCard  `json:"vocabulary,omitempty"`
	Kanji      *KanjiCard       `json:"kanji,omitempty"`
	Grammar    *GrammarRuleCard `json:"grammar,omitempty"`
}

// MarshalCard encodes card content as tagged JSON.
func MarshalCard(card Card) ([]byte, error) {
	env := cardEnvelope{}
	switch c := card.(type) {
	case VocabularyCard:
		env.Kind, env.Vocabulary = KindVocabulary, &c
	case KanjiCard:
		env.Kind, env.Kanji = KindKanji, &c
	case GrammarRuleCard:
		env.Kind, env.Grammar = KindGrammar, &c
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, card)
	}
	return json.Marshal(env)
}

// UnmarshalCard decodes tagged JSON produced by MarshalCard.
func UnmarshalCard(data []byte) (Card, error) {
	var env cardEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode card: %w", err)
	}
	switch env.Kind {
	case KindVocabulary:
		if env.Vocabulary == nil {
			return nil, fmt.Errorf("vocabulary card without payload")
		}
		return *env.Vocabulary, nil
	case KindKanji:
		if env.Kanji == nil {
			return nil, fmt.Errorf("kanji card without payload")
		}
		return *env.Kanji, nil
	case KindGrammar:
		if env.Grammar == nil {
			return nil, fmt.Errorf("grammar card without payload")
		}
		return *env.Grammar, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}
