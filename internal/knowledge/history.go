package knowledge

import (
	"time"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/memory"
)

// Summary is a point-in-time aggregate over every card of a knowledge set.
type Summary struct {
	// Averages are nil when no card has a value yet.
	AvgStability  *float64 `json:"avg_stability,omitempty"`
	AvgDifficulty *float64 `json:"avg_difficulty,omitempty"`

	TotalWords          int `json:"total_words"`
	KnownWords          int `json:"known_words"`
	NewWords            int `json:"new_words"`
	InProgressWords     int `json:"in_progress_words"`
	LowStabilityWords   int `json:"low_stability_words"`
	HighDifficultyWords int `json:"high_difficulty_words"`
}

// DailyHistoryItem is one calendar day of study. Summary fields are
// overwritten by each completed lesson of the day; LessonDuration and
// LessonsCompleted accumulate.
type DailyHistoryItem struct {
	Timestamp time.Time `json:"timestamp"`
	Summary
	LessonsCompleted int           `json:"lessons_completed"`
	LessonDuration   time.Duration `json:"lesson_duration"`
}

// Day returns the UTC calendar date the item belongs to.
func (h DailyHistoryItem) Day() time.Time {
	return calendarDay(h.Timestamp)
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func summarize(cards map[domain.CardID]StudyCard, t memory.Thresholds) Summary {
	var (
		s                       Summary
		stabilitySum, diffSum   float64
		stabilityN, difficultyN int
	)
	for _, c := range cards {
		m := c.Memory
		if m.Stability != nil {
			stabilitySum += *m.Stability
			stabilityN++
		}
		if m.Difficulty != nil {
			diffSum += *m.Difficulty
			difficultyN++
		}
		s.TotalWords++
		if m.IsKnownCard(t) {
			s.KnownWords++
		}
		if m.IsNew() {
			s.NewWords++
		}
		if m.IsInProgress(t) {
			s.InProgressWords++
		}
		if m.IsLowStability(t) {
			s.LowStabilityWords++
		}
		if m.IsHighDifficulty(t) {
			s.HighDifficultyWords++
		}
	}
	if stabilityN > 0 {
		avg := stabilitySum / float64(stabilityN)
		s.AvgStability = &avg
	}
	if difficultyN > 0 {
		avg := diffSum / float64(difficultyN)
		s.AvgDifficulty = &avg
	}
	return s
}
