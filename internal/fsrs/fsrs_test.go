package fsrs

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/keikaku/internal/memory"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestInitialState(t *testing.T) {
	params := DefaultParams()

	good := params.InitialState(memory.Good, t0)
	if math.Abs(good.Stability-2.3065) > 1e-9 {
		t.Errorf("Expected initial stability 2.3065 for Good, got %.4f", good.Stability)
	}
	// D0(Good) = 6.4133 - e^(0.8334*2) + 1 ≈ 2.12
	if math.Abs(good.Difficulty-2.12) > 0.01 {
		t.Errorf("Expected initial difficulty around 2.12 for Good, got %.4f", good.Difficulty)
	}

	again := params.InitialState(memory.Again, t0)
	easy := params.InitialState(memory.Easy, t0)
	if !(again.Stability < good.Stability && good.Stability < easy.Stability) {
		t.Errorf("Expected initial stability to grow with the grade, got %.2f %.2f %.2f", again.Stability, good.Stability, easy.Stability)
	}
	if easy.Difficulty != 1 {
		t.Errorf("Expected Easy difficulty to clamp at 1, got %.2f", easy.Difficulty)
	}
}

func TestNextState(t *testing.T) {
	params := DefaultParams()
	initialState := CardState{
		Stability:  10,
		Difficulty: 5,
		LastReview: t0.Add(-10 * 24 * time.Hour),
	}

	t.Run("Review with Again", func(t *testing.T) {
		newState := params.NextState(initialState, memory.Again, t0)
		if newState.Stability >= initialState.Stability {
			t.Errorf("Expected stability to drop, but got %.2f", newState.Stability)
		}
		if newState.Difficulty <= initialState.Difficulty {
			t.Errorf("Expected difficulty to increase, but it did not. Got %.2f", newState.Difficulty)
		}
	})

	t.Run("Review with Good", func(t *testing.T) {
		newState := params.NextState(initialState, memory.Good, t0)
		if newState.Stability <= initialState.Stability {
			t.Errorf("Expected stability to increase, but it did not. Got %.2f", newState.Stability)
		}
		if math.Abs(newState.Difficulty-initialState.Difficulty) > 0.05 {
			t.Errorf("Expected difficulty to stay about the same for 'Good', but it changed to %.2f", newState.Difficulty)
		}
	})

	t.Run("Review with Hard", func(t *testing.T) {
		newState := params.NextState(initialState, memory.Hard, t0)
		if newState.Stability <= initialState.Stability {
			t.Errorf("Expected stability to increase, but it did not. Got %.2f", newState.Stability)
		}
		if newState.Difficulty <= initialState.Difficulty {
			t.Errorf("Expected difficulty to increase for 'Hard', but it did not. Got %.2f", newState.Difficulty)
		}
		good := params.NextState(initialState, memory.Good, t0)
		if newState.Stability >= good.Stability {
			t.Errorf("Expected 'Hard' to grow stability less than 'Good', got %.2f >= %.2f", newState.Stability, good.Stability)
		}
	})

	t.Run("Same day review with Good keeps stability", func(t *testing.T) {
		sameDay := initialState
		sameDay.LastReview = t0.Add(-time.Hour)
		newState := params.NextState(sameDay, memory.Good, t0)
		if math.Abs(newState.Stability-initialState.Stability) > 1e-9 {
			t.Errorf("Expected stability to stay at %.2f, got %.2f", initialState.Stability, newState.Stability)
		}
	})
}

func TestRetrievability(t *testing.T) {
	params := DefaultParams()
	// By construction recall drops to 90% after exactly S days.
	if r := params.Retrievability(10, 10); math.Abs(r-0.9) > 1e-9 {
		t.Errorf("Expected retrievability 0.9 after S days, got %.4f", r)
	}
}

func TestNextDueDate(t *testing.T) {
	stability := 15.6 // Should round to 16 days

	expectedDate := t0.Add(16 * 24 * time.Hour)
	actualDate := DefaultParams().NextDueDate(stability, t0)
	if !actualDate.Equal(expectedDate) {
		t.Errorf("Expected due date %v, but got %v", expectedDate, actualDate)
	}

	t.Run("At least one day", func(t *testing.T) {
		got := DefaultParams().NextDueDate(0.2, t0)
		if !got.Equal(t0.Add(24 * time.Hour)) {
			t.Errorf("Expected a one day minimum, got %v", got)
		}
	})

	t.Run("Short term is capped at one day", func(t *testing.T) {
		got := ShortTermParams().NextDueDate(stability, t0)
		if !got.Equal(t0.Add(24 * time.Hour)) {
			t.Errorf("Expected a one day cap, got %v", got)
		}
	})
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	p.DesiredRetention = 1.2
	if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for retention > 1, got %v", err)
	}

	p = DefaultParams()
	p.MaximumInterval = time.Hour
	if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for sub-day maximum interval, got %v", err)
	}

	if _, err := NewService(DefaultParams(), p); err == nil {
		t.Error("Expected NewService to reject invalid short-term parameters")
	}
}
