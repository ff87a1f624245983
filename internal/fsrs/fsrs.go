// Package fsrs is the memory policy: given a card's memory state and a grade
// it computes the next stability, difficulty and due date using the FSRS-6
// model.
package fsrs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/keikaku/internal/memory"
)

const day = 24 * time.Hour

// relearnDelay is how long a forgotten card waits before it is due again.
const relearnDelay = 10 * time.Minute

// ErrInvalidParams is returned when weights or limits are out of bounds.
var ErrInvalidParams = errors.New("fsrs: parameters out of bounds")

// DefaultWeights are the FSRS-6 default parameters.
var DefaultWeights = [21]float64{
	0.212, 1.2931, 2.3065, 8.2956, // w[0..3]  initial stability per grade
	6.4133, 0.8334, 3.0194, 0.001, // w[4..7]  difficulty
	1.8722, 0.1666, 0.796, 1.4835, // w[8..11] recall stability
	0.0614, 0.2629, 1.6483, 0.6014, // w[12..15] forget stability, hard penalty
	1.8729, 0.5425, 0.0912, 0.0658, // w[16..19] easy bonus, same-day reviews
	0.1542, // w[20] decay
}

// Params holds the parameters for one scheduling mode.
type Params struct {
	W                [21]float64
	DesiredRetention float64       // e.g. 0.9 for 90%
	MaximumInterval  time.Duration // upper bound between two reviews
}

// DefaultParams is the long-term schedule used for regular lessons.
func DefaultParams() *Params {
	return &Params{
		W:                DefaultWeights,
		DesiredRetention: 0.9,
		MaximumInterval:  36500 * day,
	}
}

// ShortTermParams is the schedule used for fixation sessions: higher
// retention and cards come back within a day.
func ShortTermParams() *Params {
	return &Params{
		W:                DefaultWeights,
		DesiredRetention: 0.95,
		MaximumInterval:  day,
	}
}

// Validate checks retention and interval bounds.
func (p *Params) Validate() error {
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		return fmt.Errorf("%w: desired retention %.2f not in (0, 1)", ErrInvalidParams, p.DesiredRetention)
	}
	if p.MaximumInterval < day {
		return fmt.Errorf("%w: maximum interval %s shorter than a day", ErrInvalidParams, p.MaximumInterval)
	}
	if p.W[20] <= 0 {
		return fmt.Errorf("%w: decay w[20] must be positive", ErrInvalidParams)
	}
	return nil
}

// CardState holds the memory state of a card as seen by the model.
type CardState struct {
	Stability  float64
	Difficulty float64
	LastReview time.Time
}

func (p *Params) decay() float64 { return -p.W[20] }

func (p *Params) factor() float64 { return math.Pow(0.9, 1/p.decay()) - 1 }

// Retrievability is the probability of recall after elapsedDays.
func (p *Params) Retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+p.factor()*elapsedDays/stability, p.decay())
}

// InitialState is the state after the first review of a new card.
func (p *Params) InitialState(rating memory.Rating, now time.Time) CardState {
	return CardState{
		Stability:  clampStability(p.W[rating-1]),
		Difficulty: clampDifficulty(p.initDifficulty(rating)),
		LastReview: now,
	}
}

// NextState calculates the next stability and difficulty based on a review.
func (p *Params) NextState(current CardState, rating memory.Rating, now time.Time) CardState {
	elapsed := now.Sub(current.LastReview).Hours() / 24
	if elapsed < 0 {
		elapsed = 0
	}

	var stability float64
	switch {
	case elapsed < 1:
		stability = p.sameDayStability(current.Stability, rating)
	case rating == memory.Again:
		r := p.Retrievability(elapsed, current.Stability)
		stability = p.forgetStability(current.Difficulty, current.Stability, r)
	default:
		r := p.Retrievability(elapsed, current.Stability)
		stability = p.recallStability(current.Difficulty, current.Stability, r, rating)
	}

	return CardState{
		Stability:  clampStability(stability),
		Difficulty: p.nextDifficulty(current.Difficulty, rating),
		LastReview: now,
	}
}

// NextDueDate schedules the next review so that recall probability drops to
// the desired retention. The interval is at least a day.
func (p *Params) NextDueDate(stability float64, now time.Time) time.Time {
	days := stability / p.factor() * (math.Pow(p.DesiredRetention, 1/p.decay()) - 1)
	interval := time.Duration(math.Round(days)) * day
	interval = max(interval, day)
	interval = min(interval, p.MaximumInterval)
	return now.Add(interval)
}

// initDifficulty is D0(G) = w4 - e^(w5*(G-1)) + 1, unclamped.
func (p *Params) initDifficulty(rating memory.Rating) float64 {
	return p.W[4] - math.Exp(p.W[5]*float64(rating-1)) + 1
}

// nextDifficulty applies linear damping and mean reversion towards D0(Easy).
func (p *Params) nextDifficulty(d float64, rating memory.Rating) float64 {
	delta := -p.W[6] * (float64(rating) - 3)
	damped := d + (10-d)*delta/9
	reverted := p.W[7]*p.initDifficulty(memory.Easy) + (1-p.W[7])*damped
	return clampDifficulty(reverted)
}

// recallStability applies the core FSRS formula for a successful review.
// S' = S * (1 + e^w8 * (11-D) * S^(-w9) * (e^(w10*(1-R)) - 1) * hard * easy)
func (p *Params) recallStability(d, s, r float64, rating memory.Rating) float64 {
	hardPenalty, easyBonus := 1.0, 1.0
	switch rating {
	case memory.Hard:
		hardPenalty = p.W[15]
	case memory.Easy:
		easyBonus = p.W[16]
	}
	return s * (1 + math.Exp(p.W[8])*
		(11-d)*
		math.Pow(s, -p.W[9])*
		(math.Exp((1-r)*p.W[10])-1)*
		hardPenalty*easyBonus)
}

// forgetStability is the post-lapse stability, never above the short-term value.
func (p *Params) forgetStability(d, s, r float64) float64 {
	long := p.W[11] *
		math.Pow(d, -p.W[12]) *
		(math.Pow(s+1, p.W[13]) - 1) *
		math.Exp((1-r)*p.W[14])
	short := s / math.Exp(p.W[17]*p.W[18])
	return math.Min(long, short)
}

// sameDayStability handles reviews less than a day apart.
func (p *Params) sameDayStability(s float64, rating memory.Rating) float64 {
	inc := math.Exp(p.W[17]*(float64(rating)-3+p.W[18])) * math.Pow(s, -p.W[19])
	if rating == memory.Good || rating == memory.Easy {
		inc = math.Max(inc, 1)
	}
	return s * inc
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
