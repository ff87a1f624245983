package knowledge

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/memory"
)

func restoreTestSet(t *testing.T, clock *fakeClock, cards ...StudyCard) *KnowledgeSet {
	t.Helper()
	k, err := Restore(Snapshot{StudyCards: cards}, WithClock(clock.Now), WithRand(rand.New(rand.NewSource(7))))
	if err != nil {
		t.Fatalf("Restore() returned an unexpected error: %v", err)
	}
	return k
}

func cardWith(q string, m memory.State) StudyCard {
	sc := NewStudyCard(vocab(q, "answer "+q))
	sc.Memory = m
	return sc
}

func TestCardsToFixation(t *testing.T) {
	clock := &fakeClock{now: t0}

	t.Run("Only struggling cards, furthest due first", func(t *testing.T) {
		low := cardWith("low", studied(t, 1.0, 3.0, t0.Add(-time.Hour)))
		hard := cardWith("hard", studied(t, 5.0, 9.0, t0.Add(48*time.Hour)))
		fine := cardWith("fine", studied(t, 5.0, 3.0, t0.Add(-time.Hour)))
		fresh := NewStudyCard(vocab("fresh", "new"))
		k := restoreTestSet(t, clock, low, hard, fine, fresh)

		cards := k.FixationCards()
		if len(cards) != 2 {
			t.Fatalf("Expected 2 fixation cards, got %d", len(cards))
		}
		if cards[0].ID != hard.ID || cards[1].ID != low.ID {
			t.Errorf("Expected order [hard, low], got [%s, %s]", cards[0].Question(), cards[1].Question())
		}

		m := k.CardsToFixation()
		if _, ok := m[fine.ID]; ok {
			t.Error("Expected a healthy card to be excluded from fixation")
		}
		if _, ok := m[fresh.ID]; ok {
			t.Error("Expected a new card to be excluded from fixation")
		}
	})

	t.Run("Capped at hard cards limit", func(t *testing.T) {
		var cards []StudyCard
		for i := 0; i < 20; i++ {
			cards = append(cards, cardWith(fmt.Sprintf("q%02d", i), studied(t, 1.0, 3.0, t0.Add(time.Duration(i)*time.Hour))))
		}
		k := restoreTestSet(t, clock, cards...)

		got := k.FixationCards()
		if len(got) != HardCardsLimit {
			t.Fatalf("Expected %d fixation cards, got %d", HardCardsLimit, len(got))
		}
		if got[0].ID != cards[19].ID {
			t.Errorf("Expected the furthest due card first, got %s", got[0].Question())
		}
		for _, c := range got {
			if !c.Memory.IsStruggling(k.Config().Thresholds) {
				t.Errorf("Expected every fixation card to be struggling, got %s", c.Question())
			}
		}
		if len(k.CardsToFixation()) != HardCardsLimit {
			t.Errorf("Expected map to hold %d cards", HardCardsLimit)
		}
	})

	t.Run("Negative limit selects nothing", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HardCardsLimit = -1
		low := cardWith("low", studied(t, 1.0, 3.0, t0.Add(-time.Hour)))
		k, err := Restore(Snapshot{StudyCards: []StudyCard{low}}, WithConfig(cfg), WithClock(clock.Now))
		if err != nil {
			t.Fatalf("Restore() returned an unexpected error: %v", err)
		}

		if got := k.FixationCards(); len(got) != 0 {
			t.Errorf("Expected no fixation cards, got %d", len(got))
		}
	})
}

func TestCardsToLesson(t *testing.T) {
	clock := &fakeClock{now: t0}

	t.Run("New cards fill up to the limit", func(t *testing.T) {
		var cards []StudyCard
		for i := 0; i < 10; i++ {
			cards = append(cards, NewStudyCard(vocab(fmt.Sprintf("new%d", i), "a")))
		}
		k := restoreTestSet(t, clock, cards...)

		got := k.CardsToLesson(domain.English, nil)
		if len(got) != NewCardsLimit {
			t.Fatalf("Expected %d lesson cards, got %d", NewCardsLimit, len(got))
		}
		for _, c := range cards[:NewCardsLimit] {
			if _, ok := got[c.ID]; !ok {
				t.Errorf("Expected oldest new card %s to be selected", c.Question())
			}
		}
	})

	t.Run("Struggling cards take the new card slots", func(t *testing.T) {
		var cards []StudyCard
		for i := 0; i < 5; i++ {
			cards = append(cards, cardWith(fmt.Sprintf("low%d", i), studied(t, 1.0, 3.0, t0.Add(-time.Hour))))
		}
		for i := 0; i < 5; i++ {
			cards = append(cards, NewStudyCard(vocab(fmt.Sprintf("new%d", i), "a")))
		}
		k := restoreTestSet(t, clock, cards...)

		got := k.CardsToLesson(domain.English, nil)
		if len(got) != NewCardsLimit {
			t.Fatalf("Expected 5 struggling + 2 new = %d cards, got %d", NewCardsLimit, len(got))
		}
	})

	t.Run("No new cards once struggling fill the limit", func(t *testing.T) {
		var cards []StudyCard
		for i := 0; i < 9; i++ {
			cards = append(cards, cardWith(fmt.Sprintf("low%d", i), studied(t, 1.0, 3.0, t0.Add(-time.Hour))))
		}
		fresh := NewStudyCard(vocab("fresh", "a"))
		cards = append(cards, fresh)
		k := restoreTestSet(t, clock, cards...)

		got := k.CardsToLesson(domain.English, nil)
		if len(got) != 9 {
			t.Fatalf("Expected all 9 struggling cards and no cap, got %d", len(got))
		}
		if _, ok := got[fresh.ID]; ok {
			t.Error("Expected no new card when struggling cards meet the limit")
		}
	})

	t.Run("Due reviews are uncapped and future reviews excluded", func(t *testing.T) {
		var cards []StudyCard
		for i := 0; i < 12; i++ {
			cards = append(cards, cardWith(fmt.Sprintf("prog%d", i), studied(t, 5.0, 3.0, t0.Add(-time.Duration(i+1)*time.Hour))))
		}
		known := cardWith("known", studied(t, 30.0, 3.0, t0))
		future := cardWith("future", studied(t, 5.0, 3.0, t0.Add(time.Hour)))
		futureLow := cardWith("future-low", studied(t, 1.0, 3.0, t0.Add(time.Hour)))
		cards = append(cards, known, future, futureLow)
		k := restoreTestSet(t, clock, cards...)

		got := k.CardsToLesson(domain.English, nil)
		if len(got) != 13 {
			t.Fatalf("Expected 12 in progress + 1 known = 13 cards, got %d", len(got))
		}
		if _, ok := got[future.ID]; ok {
			t.Error("Expected a card due in the future to be excluded")
		}
		if _, ok := got[futureLow.ID]; ok {
			t.Error("Expected a struggling card due in the future to be excluded")
		}
	})

	t.Run("Selector drops and renders", func(t *testing.T) {
		keep := NewStudyCard(vocab("keep", "a"))
		drop := NewStudyCard(vocab("drop", "b"))
		rule := NewStudyCard(domain.GrammarRuleCard{
			RuleID:      domain.NewCardID(),
			Title:       "〜たい",
			Description: "want to",
			ApplyTo:     []domain.PartOfSpeech{domain.Verb},
		})
		k := restoreTestSet(t, clock, keep, drop, rule)

		var sawRules []domain.GrammarRuleCard
		var sawLang domain.NativeLanguage
		selector := VariantSelectorFunc(func(c StudyCard, lang domain.NativeLanguage, rules []domain.GrammarRuleCard) (domain.Card, bool) {
			sawRules, sawLang = rules, lang
			if c.ID == drop.ID {
				return nil, false
			}
			return vocab("rendered "+c.Question().Text(), "x"), true
		})

		got := k.CardsToLesson(domain.Russian, selector)
		if len(got) != 2 {
			t.Fatalf("Expected 2 cards after one drop, got %d", len(got))
		}
		if _, ok := got[drop.ID]; ok {
			t.Error("Expected the unrenderable card to be dropped")
		}
		if got[keep.ID].Question() != "rendered keep" {
			t.Errorf("Expected rendered content, got '%s'", got[keep.ID].Question())
		}
		if sawLang != domain.Russian {
			t.Errorf("Expected selector to receive Russian, got %s", sawLang)
		}
		if len(sawRules) != 1 || sawRules[0].Title != "〜たい" {
			t.Errorf("Expected selector to receive the known grammar rule, got %+v", sawRules)
		}
	})

	t.Run("Same seed gives the same order", func(t *testing.T) {
		var cards []StudyCard
		for i := 0; i < 7; i++ {
			cards = append(cards, NewStudyCard(vocab(fmt.Sprintf("n%d", i), "a")))
		}
		a := restoreTestSet(t, clock, cards...).LessonCards(domain.English, nil)
		b := restoreTestSet(t, clock, cards...).LessonCards(domain.English, nil)
		for i := range a {
			if a[i].ID != b[i].ID {
				t.Fatalf("Expected identical order at %d, got %s and %s", i, a[i].ID, b[i].ID)
			}
		}
	})
}

func TestLessonSizeBound(t *testing.T) {
	clock := &fakeClock{now: t0}
	r := rand.New(rand.NewSource(42))
	th := memory.DefaultThresholds()

	for round := 0; round < 20; round++ {
		var cards []StudyCard
		for i := 0; i < 40; i++ {
			q := fmt.Sprintf("r%d-%d", round, i)
			switch r.Intn(3) {
			case 0:
				cards = append(cards, NewStudyCard(vocab(q, "a")))
			default:
				next := t0.Add(time.Duration(r.Intn(96)-48) * time.Hour)
				cards = append(cards, cardWith(q, studied(t, r.Float64()*20, 1+r.Float64()*9, next)))
			}
		}
		k := restoreTestSet(t, clock, cards...)

		var priority, fresh, known int
		for _, c := range cards {
			m := c.Memory
			switch {
			case m.IsDue(t0) && m.IsStruggling(th):
				priority++
			case m.IsNew():
				fresh++
			case m.IsDue(t0) && (m.IsInProgress(th) || m.IsKnownCard(th)):
				known++
			}
		}
		want := priority + known
		if priority < NewCardsLimit {
			want += min(NewCardsLimit-priority, fresh)
		}

		if got := len(k.CardsToLesson(domain.English, nil)); got != want {
			t.Errorf("round %d: expected %d lesson cards, got %d", round, want, got)
		}
	}
}

func TestStudyScenario(t *testing.T) {
	clock := &fakeClock{now: t0}
	k := newTestSet(t, clock)

	dog, err := k.CreateCard(vocab("犬", "dog"))
	if err != nil {
		t.Fatalf("CreateCard() returned an unexpected error: %v", err)
	}
	if _, err := k.CreateCard(vocab("犬", "dog2")); err == nil {
		t.Fatal("Expected duplicate question to fail")
	}

	lesson := k.CardsToLesson(domain.English, nil)
	if len(lesson) != 1 {
		t.Fatalf("Expected exactly one lesson card, got %d", len(lesson))
	}
	if _, ok := lesson[dog.ID]; !ok {
		t.Fatal("Expected the new card in the lesson")
	}

	state, err := memory.NewState(1.0, 5.0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if err := k.RateCard(dog.ID, memory.Again, 0, state); err != nil {
		t.Fatalf("RateCard() returned an unexpected error: %v", err)
	}

	fixation := k.FixationCards()
	if len(fixation) != 1 || fixation[0].ID != dog.ID {
		t.Fatalf("Expected the rated card to be the only fixation card, got %+v", fixation)
	}
}
