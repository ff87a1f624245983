// Package study runs learner-facing operations: each call loads a learner's
// knowledge set, applies one change and persists the result.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/fsrs"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/memory"
	"github.com/conorfennell/keikaku/internal/storage"
)

// Repository persists learners and their knowledge sets.
type Repository interface {
	FindUser(ctx context.Context, id domain.UserID) (*storage.Learner, error)
	SaveUser(ctx context.Context, user domain.User, snap knowledge.Snapshot) error
}

// Policy computes the memory state that follows a rating.
type Policy interface {
	Rate(mode fsrs.Mode, rating memory.Rating, current memory.State) (fsrs.Review, error)
}

// Service is safe for concurrent use; operations are serialized so that a
// load-modify-save cycle never interleaves with another within the process.
type Service struct {
	repo     Repository
	policy   Policy
	selector knowledge.VariantSelector
	cfg      knowledge.Config
	logger   *slog.Logger
	now      func() time.Time
	validate *validator.Validate

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Service)

// WithSelector sets how lesson cards are rendered. Defaults to knowledge.AsIs.
func WithSelector(sel knowledge.VariantSelector) Option {
	return func(s *Service) { s.selector = sel }
}

func WithConfig(cfg knowledge.Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

func NewService(repo Repository, policy Policy, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		policy:   policy,
		selector: knowledge.AsIs,
		cfg:      knowledge.DefaultConfig(),
		logger:   slog.Default(),
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(s.now().UnixNano()))
	}
	return s
}

func (s *Service) load(ctx context.Context, userID domain.UserID) (domain.User, *knowledge.KnowledgeSet, error) {
	learner, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if learner == nil {
		return domain.User{}, nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	ks, err := knowledge.Restore(learner.Knowledge,
		knowledge.WithConfig(s.cfg),
		knowledge.WithClock(s.now),
		knowledge.WithRand(s.rng),
	)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return learner.User, ks, nil
}

func (s *Service) save(ctx context.Context, user domain.User, ks *knowledge.KnowledgeSet) error {
	if err := s.repo.SaveUser(ctx, user, ks.Snapshot()); err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	return nil
}

// KnowledgeSet returns a detached copy of the learner's knowledge set.
func (s *Service) KnowledgeSet(ctx context.Context, userID domain.UserID) (*knowledge.KnowledgeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ks, err := s.load(ctx, userID)
	return ks, err
}

// CreateCard validates draft and adds it to the learner's set.
func (s *Service) CreateCard(ctx context.Context, userID domain.UserID, draft CardDraft) (knowledge.StudyCard, error) {
	if err := s.validate.Struct(draft); err != nil {
		return knowledge.StudyCard{}, fmt.Errorf("invalid card: %w", err)
	}
	card, err := draft.Card()
	if err != nil {
		return knowledge.StudyCard{}, fmt.Errorf("invalid card: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ks, err := s.load(ctx, userID)
	if err != nil {
		return knowledge.StudyCard{}, err
	}
	sc, err := ks.CreateCard(card)
	if err != nil {
		return knowledge.StudyCard{}, err
	}
	if err := s.save(ctx, user, ks); err != nil {
		return knowledge.StudyCard{}, err
	}

	s.logger.Info("card created", "user", user.Username, "card_id", sc.ID, "kind", card.Kind(), "question", card.Question())
	return sc, nil
}

func (s *Service) DeleteCard(ctx context.Context, userID domain.UserID, cardID domain.CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ks, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := ks.DeleteCard(cardID); err != nil {
		return err
	}
	if err := s.save(ctx, user, ks); err != nil {
		return err
	}

	s.logger.Info("card deleted", "user", user.Username, "card_id", cardID)
	return nil
}

// SelectLesson returns the next lesson, rendered for the learner's native
// language, in presentation order.
func (s *Service) SelectLesson(ctx context.Context, userID domain.UserID) ([]knowledge.LessonItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := ks.LessonCards(user.NativeLanguage, s.selector)
	s.logger.Debug("lesson selected", "user", user.Username, "cards", len(items))
	return items, nil
}

// SelectFixation returns the learner's struggling cards as stored.
func (s *Service) SelectFixation(ctx context.Context, userID domain.UserID) ([]knowledge.LessonItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cards := ks.FixationCards()
	items := make([]knowledge.LessonItem, 0, len(cards))
	for _, c := range cards {
		items = append(items, knowledge.LessonItem{ID: c.ID, Card: c.Card})
	}
	s.logger.Debug("fixation selected", "user", user.Username, "cards", len(items))
	return items, nil
}

// RateCard grades a card under mode and stores the resulting memory state.
func (s *Service) RateCard(ctx context.Context, userID domain.UserID, cardID domain.CardID, mode fsrs.Mode, rating memory.Rating) (memory.State, error) {
	if !rating.IsValid() {
		return memory.State{}, fmt.Errorf("%w: %d", memory.ErrInvalidRating, int(rating))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ks, err := s.load(ctx, userID)
	if err != nil {
		return memory.State{}, err
	}
	sc, ok := ks.GetCard(cardID)
	if !ok {
		return memory.State{}, &domain.CardNotFoundError{CardID: cardID}
	}

	review, err := s.policy.Rate(mode, rating, sc.Memory)
	if err != nil {
		return memory.State{}, fmt.Errorf("failed to rate card %s: %w", cardID, err)
	}
	if err := ks.RateCard(cardID, rating, review.Interval, review.State); err != nil {
		return memory.State{}, err
	}
	if err := s.save(ctx, user, ks); err != nil {
		return memory.State{}, err
	}

	rated, _ := ks.GetCard(cardID)
	s.logger.Info("card rated",
		"user", user.Username,
		"card_id", cardID,
		"mode", mode,
		"rating", rating,
		"interval", review.Interval,
		"memory", rated.Memory,
	)
	return rated.Memory, nil
}

// CompleteLesson records a finished lesson of duration d and returns the
// updated history item for today.
func (s *Service) CompleteLesson(ctx context.Context, userID domain.UserID, d time.Duration) (knowledge.DailyHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ks, err := s.load(ctx, userID)
	if err != nil {
		return knowledge.DailyHistoryItem{}, err
	}
	ks.AddLessonDuration(d)
	if err := s.save(ctx, user, ks); err != nil {
		return knowledge.DailyHistoryItem{}, err
	}

	today, _ := ks.HistoryOn(s.now())
	s.logger.Info("lesson completed",
		"user", user.Username,
		"duration", d,
		"lessons_today", today.LessonsCompleted,
		"total_words", today.TotalWords,
		"known_words", today.KnownWords,
	)
	return today, nil
}

// History returns the learner's daily lesson history, oldest day first.
func (s *Service) History(ctx context.Context, userID domain.UserID) ([]knowledge.DailyHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ks.LessonHistory(), nil
}
