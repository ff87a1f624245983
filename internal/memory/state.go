package memory

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ReviewLog records one graded review of a card.
type ReviewLog struct {
	ID        uuid.UUID     `json:"id"`
	Rating    Rating        `json:"rating"`
	Timestamp time.Time     `json:"timestamp"`
	Interval  time.Duration `json:"interval"`
}

// NewReviewLog stamps a review at the given time with a fresh id.
func NewReviewLog(rating Rating, at time.Time, interval time.Duration) ReviewLog {
	return ReviewLog{
		ID:        uuid.Must(uuid.NewV7()),
		Rating:    rating,
		Timestamp: at,
		Interval:  interval,
	}
}

// State is the scheduling metadata of one card. Stability, Difficulty and
// NextReviewDate are nil until the card has been reviewed once.
// Reviews is append-only, oldest first.
type State struct {
	Difficulty     *float64    `json:"difficulty,omitempty"`
	Stability      *float64    `json:"stability,omitempty"`
	NextReviewDate *time.Time  `json:"next_review_date,omitempty"`
	Reviews        []ReviewLog `json:"reviews,omitempty"`
}

// NewState builds a reviewed state. Stability is measured in days.
func NewState(stability, difficulty float64, nextReview time.Time) (State, error) {
	if stability < 0 {
		return State{}, fmt.Errorf("invalid stability %.2f: cannot be negative", stability)
	}
	if difficulty < 0 {
		return State{}, fmt.Errorf("invalid difficulty %.2f: cannot be negative", difficulty)
	}
	return State{
		Stability:      &stability,
		Difficulty:     &difficulty,
		NextReviewDate: &nextReview,
	}, nil
}

// Clone returns a deep copy; pointer fields and the review log are not shared.
func (s State) Clone() State {
	out := State{Reviews: slices.Clone(s.Reviews)}
	if s.Difficulty != nil {
		v := *s.Difficulty
		out.Difficulty = &v
	}
	if s.Stability != nil {
		v := *s.Stability
		out.Stability = &v
	}
	if s.NextReviewDate != nil {
		v := *s.NextReviewDate
		out.NextReviewDate = &v
	}
	return out
}

// LastReview returns the most recent review, if any.
func (s State) LastReview() (ReviewLog, bool) {
	if len(s.Reviews) == 0 {
		return ReviewLog{}, false
	}
	return s.Reviews[len(s.Reviews)-1], true
}

// Lapses counts reviews graded Again.
func (s State) Lapses() int {
	n := 0
	for _, r := range s.Reviews {
		if r.Rating == Again {
			n++
		}
	}
	return n
}

func (s State) String() string {
	if s.Stability == nil || s.Difficulty == nil || s.NextReviewDate == nil {
		return "new"
	}
	return fmt.Sprintf("Stability: %.2f, Difficulty: %.2f, Next review date: %s",
		*s.Stability, *s.Difficulty, s.NextReviewDate.Format(time.RFC3339))
}

// CompareNextReview orders states by next review date, unscheduled first.
func CompareNextReview(a, b State) int {
	switch {
	case a.NextReviewDate == nil && b.NextReviewDate == nil:
		return 0
	case a.NextReviewDate == nil:
		return -1
	case b.NextReviewDate == nil:
		return 1
	default:
		return a.NextReviewDate.Compare(*b.NextReviewDate)
	}
}
