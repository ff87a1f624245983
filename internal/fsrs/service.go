package fsrs

import (
	"fmt"
	"time"

	"github.com/conorfennell/keikaku/internal/memory"
)

// Mode selects the schedule a rating is applied with.
type Mode int

const (
	StandardLesson Mode = iota
	FixationLesson
)

func (m Mode) String() string {
	switch m {
	case StandardLesson:
		return "lesson"
	case FixationLesson:
		return "fixation"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Review is the outcome of rating a card: the memory state to store and the
// interval until the next review.
type Review struct {
	Interval time.Duration
	State    memory.State
}

// Service rates cards with a long-term schedule for lessons and a short-term
// schedule for fixation.
type Service struct {
	long  *Params
	short *Params
	now   func() time.Time
}

// NewService validates both parameter sets.
func NewService(long, short *Params) (*Service, error) {
	if err := long.Validate(); err != nil {
		return nil, fmt.Errorf("long-term parameters: %w", err)
	}
	if err := short.Validate(); err != nil {
		return nil, fmt.Errorf("short-term parameters: %w", err)
	}
	return &Service{long: long, short: short, now: time.Now}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	out := *s
	out.now = now
	return &out
}

// Rate computes the memory state after grading a card whose current state is
// current. The review log of current is not modified; the caller appends the
// new review when storing the result.
func (s *Service) Rate(mode Mode, rating memory.Rating, current memory.State) (Review, error) {
	if !rating.IsValid() {
		return Review{}, fmt.Errorf("%w: %d", memory.ErrInvalidRating, int(rating))
	}

	params := s.long
	if mode == FixationLesson {
		params = s.short
	}
	now := s.now()

	var next CardState
	if current.Stability == nil || current.Difficulty == nil {
		next = params.InitialState(rating, now)
	} else {
		lastReview := now
		if last, ok := current.LastReview(); ok {
			lastReview = last.Timestamp
		}
		next = params.NextState(CardState{
			Stability:  *current.Stability,
			Difficulty: *current.Difficulty,
			LastReview: lastReview,
		}, rating, now)
	}

	due := params.NextDueDate(next.Stability, now)
	if rating == memory.Again {
		due = now.Add(relearnDelay)
	}

	state, err := memory.NewState(next.Stability, next.Difficulty, due)
	if err != nil {
		return Review{}, fmt.Errorf("srs calculation failed: %w", err)
	}

	interval := due.Sub(now)
	if interval < 0 || rating == memory.Again {
		interval = 0
	}
	return Review{Interval: interval, State: state}, nil
}
