package knowledge

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/memory"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestSet(t *testing.T, clock *fakeClock) *KnowledgeSet {
	t.Helper()
	return New(WithClock(clock.Now), WithRand(rand.New(rand.NewSource(1))))
}

func vocab(q, a string) domain.VocabularyCard {
	return domain.VocabularyCard{Word: domain.Question(q), Meaning: domain.Answer(a)}
}

// studied returns a memory state that has been reviewed once.
func studied(t *testing.T, stability, difficulty float64, next time.Time) memory.State {
	t.Helper()
	s, err := memory.NewState(stability, difficulty, next)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.Reviews = []memory.ReviewLog{memory.NewReviewLog(memory.Good, next.Add(-48*time.Hour), 48*time.Hour)}
	return s
}

func TestCreateCard(t *testing.T) {
	clock := &fakeClock{now: t0}
	k := newTestSet(t, clock)

	sc, err := k.CreateCard(vocab("犬", "dog"))
	if err != nil {
		t.Fatalf("CreateCard() returned an unexpected error: %v", err)
	}
	if !sc.Memory.IsNew() {
		t.Errorf("Expected a new card to have an empty memory, got %v", sc.Memory)
	}
	got, ok := k.GetCard(sc.ID)
	if !ok {
		t.Fatalf("Expected card %s to be retrievable", sc.ID)
	}
	if got.Question() != "犬" {
		t.Errorf("Expected question '犬', got '%s'", got.Question())
	}

	t.Run("Duplicate question is rejected", func(t *testing.T) {
		_, err := k.CreateCard(vocab("犬", "dog2"))
		if !errors.Is(err, domain.ErrDuplicateCard) {
			t.Fatalf("Expected ErrDuplicateCard, got %v", err)
		}
		var dup *domain.DuplicateCardError
		if !errors.As(err, &dup) || dup.Question != "犬" {
			t.Errorf("Expected DuplicateCardError for '犬', got %v", err)
		}
		if k.Len() != 1 {
			t.Errorf("Expected the set to be unchanged with 1 card, got %d", k.Len())
		}
	})

	t.Run("Question match is case-sensitive", func(t *testing.T) {
		if _, err := k.CreateCard(vocab("Go", "language")); err != nil {
			t.Fatalf("CreateCard(Go) returned an unexpected error: %v", err)
		}
		if _, err := k.CreateCard(vocab("go", "to go")); err != nil {
			t.Errorf("Expected 'go' to be distinct from 'Go', got %v", err)
		}
	})

	t.Run("Duplicate across card kinds", func(t *testing.T) {
		kanji := domain.KanjiCard{Kanji: "犬", Description: "dog"}
		if _, err := k.CreateCard(kanji); !errors.Is(err, domain.ErrDuplicateCard) {
			t.Errorf("Expected ErrDuplicateCard for a kanji card with the same question, got %v", err)
		}
	})
}

func TestDeleteCard(t *testing.T) {
	k := newTestSet(t, &fakeClock{now: t0})
	sc, err := k.CreateCard(vocab("猫", "cat"))
	if err != nil {
		t.Fatalf("CreateCard() returned an unexpected error: %v", err)
	}

	t.Run("Missing card", func(t *testing.T) {
		missing := domain.NewCardID()
		err := k.DeleteCard(missing)
		if !errors.Is(err, domain.ErrCardNotFound) {
			t.Fatalf("Expected ErrCardNotFound, got %v", err)
		}
		var nf *domain.CardNotFoundError
		if !errors.As(err, &nf) || nf.CardID != missing {
			t.Errorf("Expected CardNotFoundError for %s, got %v", missing, err)
		}
		if k.Len() != 1 {
			t.Errorf("Expected the set to be unchanged, got %d cards", k.Len())
		}
	})

	t.Run("Existing card", func(t *testing.T) {
		if err := k.DeleteCard(sc.ID); err != nil {
			t.Fatalf("DeleteCard() returned an unexpected error: %v", err)
		}
		if _, ok := k.GetCard(sc.ID); ok {
			t.Error("Expected card to be gone after delete")
		}
		if err := k.DeleteCard(sc.ID); !errors.Is(err, domain.ErrCardNotFound) {
			t.Errorf("Expected a second delete to fail with ErrCardNotFound, got %v", err)
		}
	})
}

func TestRateCard(t *testing.T) {
	clock := &fakeClock{now: t0}
	k := newTestSet(t, clock)
	sc, err := k.CreateCard(vocab("水", "water"))
	if err != nil {
		t.Fatalf("CreateCard() returned an unexpected error: %v", err)
	}

	first := studied(t, 3.0, 5.0, t0.Add(72*time.Hour))
	first.Reviews = nil
	if err := k.RateCard(sc.ID, memory.Good, 72*time.Hour, first); err != nil {
		t.Fatalf("RateCard() returned an unexpected error: %v", err)
	}

	got, _ := k.GetCard(sc.ID)
	if *got.Memory.Stability != 3.0 || *got.Memory.Difficulty != 5.0 {
		t.Errorf("Expected memory to be replaced, got %v", got.Memory)
	}
	if !got.Memory.NextReviewDate.Equal(t0.Add(72 * time.Hour)) {
		t.Errorf("Expected next review %v, got %v", t0.Add(72*time.Hour), got.Memory.NextReviewDate)
	}
	if len(got.Memory.Reviews) != 1 {
		t.Fatalf("Expected 1 review, got %d", len(got.Memory.Reviews))
	}
	last := got.Memory.Reviews[0]
	if last.Rating != memory.Good || !last.Timestamp.Equal(t0) || last.Interval != 72*time.Hour {
		t.Errorf("Unexpected review log %+v", last)
	}

	t.Run("Second rating replaces and appends", func(t *testing.T) {
		clock.now = t0.Add(73 * time.Hour)
		second := studied(t, 1.0, 6.5, clock.now)
		if err := k.RateCard(sc.ID, memory.Again, 0, second); err != nil {
			t.Fatalf("RateCard() returned an unexpected error: %v", err)
		}
		got, _ := k.GetCard(sc.ID)
		if *got.Memory.Stability != 1.0 || *got.Memory.Difficulty != 6.5 {
			t.Errorf("Expected memory to be replaced, got %v", got.Memory)
		}
		if len(got.Memory.Reviews) != 2 {
			t.Fatalf("Expected 2 reviews, got %d", len(got.Memory.Reviews))
		}
		if r := got.Memory.Reviews[1]; r.Rating != memory.Again || !r.Timestamp.Equal(clock.now) || r.Interval != 0 {
			t.Errorf("Unexpected last review log %+v", r)
		}
		if got.Memory.Reviews[0].Rating != memory.Good {
			t.Errorf("Expected first review to be preserved, got %v", got.Memory.Reviews[0].Rating)
		}
	})

	t.Run("Missing card", func(t *testing.T) {
		err := k.RateCard(domain.NewCardID(), memory.Good, time.Hour, first)
		if !errors.Is(err, domain.ErrCardNotFound) {
			t.Errorf("Expected ErrCardNotFound, got %v", err)
		}
	})

	t.Run("Invalid rating", func(t *testing.T) {
		err := k.RateCard(sc.ID, memory.Rating(0), time.Hour, first)
		if !errors.Is(err, memory.ErrInvalidRating) {
			t.Errorf("Expected ErrInvalidRating, got %v", err)
		}
	})
}

func TestRestore(t *testing.T) {
	a := NewStudyCard(vocab("山", "mountain"))
	b := NewStudyCard(vocab("山", "hill"))

	if _, err := Restore(Snapshot{StudyCards: []StudyCard{a, b}}); !errors.Is(err, domain.ErrDuplicateCard) {
		t.Errorf("Expected restore with a duplicate question to fail, got %v", err)
	}
	if _, err := Restore(Snapshot{StudyCards: []StudyCard{a, a}}); err == nil {
		t.Error("Expected restore with a duplicate id to fail")
	}

	k, err := Restore(Snapshot{StudyCards: []StudyCard{a}})
	if err != nil {
		t.Fatalf("Restore() returned an unexpected error: %v", err)
	}
	snap := k.Snapshot()
	if len(snap.StudyCards) != 1 || snap.StudyCards[0].ID != a.ID {
		t.Errorf("Expected snapshot to contain card %s, got %+v", a.ID, snap.StudyCards)
	}
}

func TestCardsOrderedByCreation(t *testing.T) {
	k := newTestSet(t, &fakeClock{now: t0})
	var ids []domain.CardID
	for i := 0; i < 5; i++ {
		sc, err := k.CreateCard(vocab(fmt.Sprintf("q%d", i), "a"))
		if err != nil {
			t.Fatalf("CreateCard() returned an unexpected error: %v", err)
		}
		ids = append(ids, sc.ID)
	}
	for i, c := range k.Cards() {
		if c.ID != ids[i] {
			t.Errorf("Expected card %d to be %s, got %s", i, ids[i], c.ID)
		}
	}
}
