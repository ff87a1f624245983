// Package parser reads Markdown decks. An entry is a block of prefixed lines:
//
//	Q: 食べる
//	A: to eat
//	T: vocabulary verb
//	E: ご飯を食べる | to eat rice
//
// Q: and A: may continue over following lines. T: names the card kind and an
// optional qualifier: a part of speech for vocabulary, a JLPT level for kanji,
// or a comma-separated list of parts of speech for grammar. Each E: line adds
// one example. A line of "---" or a new Q: ends the entry.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/keikaku/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	typePrefix     = "T:"
	examplePrefix  = "E:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingMeta
)

// Entry is one parsed deck entry. Question and Answer hold plain text with
// Markdown inline formatting removed.
type Entry struct {
	Kind         domain.Kind
	Question     string
	Answer       string
	PartOfSpeech domain.PartOfSpeech
	Level        domain.JapaneseLevel
	ApplyTo      []domain.PartOfSpeech
	Examples     []domain.ExamplePhrase
	Line         int
}

// LineError reports a malformed line. Parsing continues past it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseFile reads a file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all entries. Malformed T: or E:
// lines are reported as *LineError values joined into the returned error,
// alongside every entry that could be read.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var (
		entries      []Entry
		lineErrs     []error
		current      Entry
		currentBlock []string
		currentState = seeking
		lineNo       int
	)

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.Join(currentBlock, "\n")
		switch currentState {
		case readingQuestion:
			current.Question = plainText(content)
		case readingAnswer:
			current.Answer = plainText(content)
		}
		currentBlock = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Question != "" {
			if current.Kind == "" {
				current.Kind = domain.KindVocabulary
			}
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishEntry()
			continue
		}

		prefix, value, ok := cutPrefix(line)
		if !ok {
			if currentState == readingQuestion || currentState == readingAnswer {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		flushBlock()
		switch prefix {
		case questionPrefix:
			if currentState != seeking {
				finishEntry()
			}
			current.Line = lineNo
			currentState = readingQuestion
			currentBlock = append(currentBlock, value)
		case answerPrefix:
			currentState = readingAnswer
			currentBlock = append(currentBlock, value)
		case typePrefix:
			currentState = readingMeta
			if err := current.setType(value); err != nil {
				lineErrs = append(lineErrs, &LineError{Line: lineNo, Err: err})
			}
		case examplePrefix:
			currentState = readingMeta
			text, translation, found := strings.Cut(value, "|")
			if !found || strings.TrimSpace(text) == "" {
				lineErrs = append(lineErrs, &LineError{Line: lineNo, Err: errors.New("example must be 'text | translation'")})
				continue
			}
			current.Examples = append(current.Examples, domain.ExamplePhrase{
				Text:        strings.TrimSpace(text),
				Translation: strings.TrimSpace(translation),
			})
		}
	}

	finishEntry() // Finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, errors.Join(lineErrs...)
}

func cutPrefix(line string) (prefix, value string, ok bool) {
	for _, p := range []string{questionPrefix, answerPrefix, typePrefix, examplePrefix} {
		if rest, found := strings.CutPrefix(line, p); found {
			return p, strings.TrimPrefix(rest, " "), true
		}
	}
	return "", "", false
}

func (e *Entry) setType(value string) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return errors.New("empty card type")
	}

	switch kind := domain.Kind(strings.ToLower(fields[0])); kind {
	case domain.KindVocabulary:
		e.Kind = kind
		if len(fields) > 1 {
			pos, err := parsePartOfSpeech(fields[1])
			if err != nil {
				return err
			}
			e.PartOfSpeech = pos
		}
	case domain.KindKanji:
		e.Kind = kind
		if len(fields) > 1 {
			level, err := domain.ParseJapaneseLevel(fields[1])
			if err != nil {
				return err
			}
			e.Level = level
		}
	case domain.KindGrammar:
		e.Kind = kind
		for _, f := range fields[1:] {
			for _, name := range strings.Split(f, ",") {
				if name == "" {
					continue
				}
				pos, err := parsePartOfSpeech(name)
				if err != nil {
					return err
				}
				e.ApplyTo = append(e.ApplyTo, pos)
			}
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownKind, fields[0])
	}
	return nil
}

func parsePartOfSpeech(s string) (domain.PartOfSpeech, error) {
	switch pos := domain.PartOfSpeech(strings.ToLower(s)); pos {
	case domain.Noun, domain.Verb, domain.IAdjective, domain.NaAdjective, domain.Adverb, domain.Other:
		return pos, nil
	default:
		return "", fmt.Errorf("unknown part of speech %q", s)
	}
}
