package memory

import "time"

// Thresholds are the policy constants behind the status predicates.
type Thresholds struct {
	// Stability (days) below which a reviewed card is struggling.
	LowStability float64
	// Stability (days) above which a card counts as known.
	KnownStability float64
	// Difficulty at or above which a card is struggling.
	HighDifficulty float64
}

// DefaultThresholds returns conservative defaults for an FSRS difficulty
// scale of 1..10.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowStability:   2.0,
		KnownStability: 10.0,
		HighDifficulty: 7.0,
	}
}

// IsNew reports whether the card has never been reviewed.
func (s State) IsNew() bool {
	return len(s.Reviews) == 0
}

// IsDue reports whether the card should be reviewed at now. A card without a
// scheduled review is due immediately.
func (s State) IsDue(now time.Time) bool {
	return s.NextReviewDate == nil || !s.NextReviewDate.After(now)
}

// IsLowStability reports whether a reviewed card's stability is below the low threshold.
func (s State) IsLowStability(t Thresholds) bool {
	return s.Stability != nil && *s.Stability < t.LowStability
}

// IsHighDifficulty reports whether the card's difficulty reached the high threshold.
func (s State) IsHighDifficulty(t Thresholds) bool {
	return s.Difficulty != nil && *s.Difficulty >= t.HighDifficulty
}

// IsKnownCard reports whether the card has been learned to a stable level.
func (s State) IsKnownCard(t Thresholds) bool {
	return s.Stability != nil && *s.Stability > t.KnownStability && !s.IsHighDifficulty(t)
}

// IsInProgress reports whether the card is being learned: reviewed, not yet
// known and not struggling.
func (s State) IsInProgress(t Thresholds) bool {
	return !s.IsNew() &&
		!s.IsKnownCard(t) &&
		!s.IsHighDifficulty(t) &&
		!s.IsLowStability(t)
}

// IsStruggling reports whether the card is low-stability or high-difficulty.
func (s State) IsStruggling(t Thresholds) bool {
	return s.IsLowStability(t) || s.IsHighDifficulty(t)
}
