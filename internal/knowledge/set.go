// Package knowledge holds a learner's study cards and decides what to study.
//
// A KnowledgeSet is owned by a single session: it is loaded, mutated and
// persisted as a whole, and is not safe for concurrent use.
package knowledge

import (
	"bytes"
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"time"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/memory"
)

const (
	// NewCardsLimit is the default number of lesson slots shared by
	// struggling and new cards.
	NewCardsLimit = 7
	// HardCardsLimit is the default cap on a fixation session.
	HardCardsLimit = 15
)

// Config holds the selection policy of a knowledge set.
type Config struct {
	Thresholds     memory.Thresholds
	NewCardsLimit  int
	HardCardsLimit int
}

// DefaultConfig returns the default selection policy.
func DefaultConfig() Config {
	return Config{
		Thresholds:     memory.DefaultThresholds(),
		NewCardsLimit:  NewCardsLimit,
		HardCardsLimit: HardCardsLimit,
	}
}

// Option customizes a KnowledgeSet.
type Option func(*KnowledgeSet)

// WithConfig replaces the selection policy.
func WithConfig(cfg Config) Option {
	return func(k *KnowledgeSet) { k.cfg = cfg }
}

// WithClock sets the time source used for due checks, review timestamps and
// history days.
func WithClock(now func() time.Time) Option {
	return func(k *KnowledgeSet) { k.now = now }
}

// WithRand sets the random source used to shuffle lessons.
func WithRand(rng *rand.Rand) Option {
	return func(k *KnowledgeSet) { k.rng = rng }
}

// KnowledgeSet is the aggregate of a learner's study cards and daily history.
type KnowledgeSet struct {
	studyCards    map[domain.CardID]StudyCard
	lessonHistory []DailyHistoryItem

	cfg Config
	now func() time.Time
	rng *rand.Rand
}

// New returns an empty knowledge set.
func New(opts ...Option) *KnowledgeSet {
	k := &KnowledgeSet{
		studyCards: make(map[domain.CardID]StudyCard),
		cfg:        DefaultConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.rng == nil {
		k.rng = rand.New(rand.NewSource(k.now().UnixNano()))
	}
	return k
}

// Snapshot is the persistable content of a knowledge set. Cards are ordered
// by id and history by day.
type Snapshot struct {
	StudyCards    []StudyCard
	LessonHistory []DailyHistoryItem
}

// Restore rebuilds a knowledge set from a snapshot. It fails if two cards
// share an id or a question.
func Restore(s Snapshot, opts ...Option) (*KnowledgeSet, error) {
	k := New(opts...)
	questions := make(map[domain.Question]struct{}, len(s.StudyCards))
	for _, c := range s.StudyCards {
		if _, ok := k.studyCards[c.ID]; ok {
			return nil, fmt.Errorf("restore knowledge set: card id %s appears twice", c.ID)
		}
		if _, ok := questions[c.Question()]; ok {
			return nil, fmt.Errorf("restore knowledge set: %w", &domain.DuplicateCardError{Question: c.Question()})
		}
		questions[c.Question()] = struct{}{}
		k.studyCards[c.ID] = c
	}
	k.lessonHistory = slices.Clone(s.LessonHistory)
	return k, nil
}

// Snapshot returns the persistable content of the set.
func (k *KnowledgeSet) Snapshot() Snapshot {
	return Snapshot{
		StudyCards:    k.Cards(),
		LessonHistory: k.LessonHistory(),
	}
}

// Config returns the selection policy in use.
func (k *KnowledgeSet) Config() Config {
	return k.cfg
}

// Len returns the number of study cards.
func (k *KnowledgeSet) Len() int {
	return len(k.studyCards)
}

// GetCard looks up a study card by id.
func (k *KnowledgeSet) GetCard(id domain.CardID) (StudyCard, bool) {
	c, ok := k.studyCards[id]
	return c, ok
}

// StudyCards returns a copy of the card map.
func (k *KnowledgeSet) StudyCards() map[domain.CardID]StudyCard {
	return maps.Clone(k.studyCards)
}

// Cards returns all study cards ordered by id, i.e. by creation time.
func (k *KnowledgeSet) Cards() []StudyCard {
	cards := slices.Collect(maps.Values(k.studyCards))
	slices.SortFunc(cards, func(a, b StudyCard) int {
		return compareIDs(a.ID, b.ID)
	})
	return cards
}

// LessonHistory returns the daily history, oldest day first.
func (k *KnowledgeSet) LessonHistory() []DailyHistoryItem {
	return slices.Clone(k.lessonHistory)
}

// CreateCard adds card with a fresh id and an empty memory. It fails with a
// *domain.DuplicateCardError if another card has the same question text.
func (k *KnowledgeSet) CreateCard(card domain.Card) (StudyCard, error) {
	if err := k.validateUniqueCard(card); err != nil {
		return StudyCard{}, err
	}
	sc := NewStudyCard(card)
	k.studyCards[sc.ID] = sc
	return sc, nil
}

func (k *KnowledgeSet) validateUniqueCard(card domain.Card) error {
	for _, c := range k.studyCards {
		if c.Question() == card.Question() {
			return &domain.DuplicateCardError{Question: card.Question()}
		}
	}
	return nil
}

// DeleteCard removes a card. History is left untouched.
func (k *KnowledgeSet) DeleteCard(id domain.CardID) error {
	if _, ok := k.studyCards[id]; !ok {
		return &domain.CardNotFoundError{CardID: id}
	}
	delete(k.studyCards, id)
	return nil
}

// RateCard replaces the card's memory with state and appends a review log
// stamped now. The review log already on the card is carried forward; any
// reviews on state are ignored.
func (k *KnowledgeSet) RateCard(id domain.CardID, rating memory.Rating, interval time.Duration, state memory.State) error {
	sc, ok := k.studyCards[id]
	if !ok {
		return &domain.CardNotFoundError{CardID: id}
	}
	if !rating.IsValid() {
		return fmt.Errorf("rate card %s: %w: %d", id, memory.ErrInvalidRating, int(rating))
	}

	next := state.Clone()
	next.Reviews = append(slices.Clone(sc.Memory.Reviews), memory.NewReviewLog(rating, k.now(), interval))
	sc.Memory = next
	k.studyCards[id] = sc
	return nil
}

// Summary aggregates the current state of every card.
func (k *KnowledgeSet) Summary() Summary {
	return summarize(k.studyCards, k.cfg.Thresholds)
}

// AddLessonDuration records a completed lesson in today's history item,
// creating the item on the first lesson of the day.
func (k *KnowledgeSet) AddLessonDuration(d time.Duration) {
	now := k.now()
	summary := k.Summary()
	today := calendarDay(now)

	for i := range k.lessonHistory {
		item := &k.lessonHistory[i]
		if item.Day().Equal(today) {
			item.Summary = summary
			item.LessonsCompleted++
			item.LessonDuration += d
			return
		}
	}

	k.lessonHistory = append(k.lessonHistory, DailyHistoryItem{
		Timestamp:        now,
		Summary:          summary,
		LessonsCompleted: 1,
		LessonDuration:   d,
	})
}

// HistoryOn returns the history item for the calendar day containing t.
func (k *KnowledgeSet) HistoryOn(t time.Time) (DailyHistoryItem, bool) {
	day := calendarDay(t)
	for _, item := range k.lessonHistory {
		if item.Day().Equal(day) {
			return item, true
		}
	}
	return DailyHistoryItem{}, false
}

func compareIDs(a, b domain.CardID) int {
	return bytes.Compare(a[:], b[:])
}
