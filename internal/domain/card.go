package domain

import "github.com/google/uuid"

// Kind names a card content variant.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindKanji      Kind = "kanji"
	KindGrammar    Kind = "grammar"
)

// Card is the immutable content of a study card. The set of implementations
// is closed: VocabularyCard, KanjiCard and GrammarRuleCard.
type Card interface {
	Kind() Kind
	Question() Question
	Answer() Answer
	isCard()
}

// VocabularyCard asks for the meaning of a word.
type VocabularyCard struct {
	Word         Question        `json:"word"`
	Meaning      Answer          `json:"meaning"`
	PartOfSpeech PartOfSpeech    `json:"part_of_speech,omitempty"`
	Examples     []ExamplePhrase `json:"examples,omitempty"`
}

// ExamplePhrase is a sentence using a vocabulary word, with its translation.
type ExamplePhrase struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

func (VocabularyCard) Kind() Kind           { return KindVocabulary }
func (c VocabularyCard) Question() Question { return c.Word }
func (c VocabularyCard) Answer() Answer     { return c.Meaning }
func (VocabularyCard) isCard()              {}

// Reverse swaps the prompt and the expected answer.
func (c VocabularyCard) Reverse() (VocabularyCard, error) {
	word, err := NewQuestion(c.Meaning.Text())
	if err != nil {
		return VocabularyCard{}, err
	}
	meaning, err := NewAnswer(c.Word.Text())
	if err != nil {
		return VocabularyCard{}, err
	}
	return VocabularyCard{
		Word:         word,
		Meaning:      meaning,
		PartOfSpeech: c.PartOfSpeech,
		Examples:     c.Examples,
	}, nil
}

// KanjiCard asks for the meaning of a single kanji.
type KanjiCard struct {
	Kanji        Question           `json:"kanji"`
	Description  Answer             `json:"description"`
	Level        JapaneseLevel      `json:"level,omitempty"`
	ExampleWords []ExampleKanjiWord `json:"example_words,omitempty"`
}

// ExampleKanjiWord is a common word containing the kanji.
type ExampleKanjiWord struct {
	Word    string `json:"word"`
	Meaning string `json:"meaning"`
}

func (KanjiCard) Kind() Kind           { return KindKanji }
func (c KanjiCard) Question() Question { return c.Kanji }
func (c KanjiCard) Answer() Answer     { return c.Description }
func (KanjiCard) isCard()              {}

// GrammarRuleCard teaches one grammar rule. Once present in a knowledge set,
// the rule may be applied when rendering vocabulary cards.
type GrammarRuleCard struct {
	RuleID      uuid.UUID      `json:"rule_id"`
	Title       Question       `json:"title"`
	Description Answer         `json:"description"`
	ApplyTo     []PartOfSpeech `json:"apply_to,omitempty"`
}

func (GrammarRuleCard) Kind() Kind           { return KindGrammar }
func (c GrammarRuleCard) Question() Question { return c.Title }
func (c GrammarRuleCard) Answer() Answer     { return c.Description }
func (GrammarRuleCard) isCard()              {}

// AppliesTo reports whether the rule can be used with the given part of speech.
func (c GrammarRuleCard) AppliesTo(pos PartOfSpeech) bool {
	for _, p := range c.ApplyTo {
		if p == pos {
			return true
		}
	}
	return false
}
