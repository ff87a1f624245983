package domain

import (
	"fmt"
	"strings"
)

// Question is the prompt side of a card. It is never empty and carries no
// surrounding whitespace. Comparison is exact and case-sensitive.
type Question string

// NewQuestion trims text and rejects empty input.
func NewQuestion(text string) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: question text cannot be empty", ErrInvalidQuestion)
	}
	return Question(text), nil
}

func (q Question) Text() string { return string(q) }

// Answer is the expected recall for a card.
type Answer string

// NewAnswer trims text and rejects empty input.
func NewAnswer(text string) (Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: answer text cannot be empty", ErrInvalidAnswer)
	}
	return Answer(text), nil
}

func (a Answer) Text() string { return string(a) }

// NativeLanguage is the learner's language, used when rendering card variants.
type NativeLanguage string

const (
	English NativeLanguage = "english"
	Russian NativeLanguage = "russian"
)

// ParseNativeLanguage accepts the language name in any case.
func ParseNativeLanguage(s string) (NativeLanguage, error) {
	switch NativeLanguage(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English, nil
	case Russian:
		return Russian, nil
	default:
		return "", fmt.Errorf("unknown native language: %s", s)
	}
}

// JapaneseLevel is a JLPT level, N5 being the easiest.
type JapaneseLevel string

const (
	N5 JapaneseLevel = "N5"
	N4 JapaneseLevel = "N4"
	N3 JapaneseLevel = "N3"
	N2 JapaneseLevel = "N2"
	N1 JapaneseLevel = "N1"
)

// ParseJapaneseLevel accepts "n5".."n1" in any case.
func ParseJapaneseLevel(s string) (JapaneseLevel, error) {
	switch l := JapaneseLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case N5, N4, N3, N2, N1:
		return l, nil
	default:
		return "", fmt.Errorf("unknown Japanese level: %s", s)
	}
}

// PartOfSpeech classifies a vocabulary word for grammar-rule applicability.
type PartOfSpeech string

const (
	Noun        PartOfSpeech = "noun"
	Verb        PartOfSpeech = "verb"
	IAdjective  PartOfSpeech = "i-adjective"
	NaAdjective PartOfSpeech = "na-adjective"
	Adverb      PartOfSpeech = "adverb"
	Other       PartOfSpeech = "other"
)
