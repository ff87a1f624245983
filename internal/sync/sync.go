// Package sync reconciles a learner's deck sources into their knowledge set.
// New deck entries become cards, entries that disappear from a deck are
// deleted, and entries whose question already exists are skipped.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/gitsource"
	"github.com/conorfennell/keikaku/internal/knol"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/parser"
	"github.com/conorfennell/keikaku/internal/storage"
)

// Store is the persistence the syncer needs.
type Store interface {
	FindUser(ctx context.Context, id domain.UserID) (*storage.Learner, error)
	SaveUser(ctx context.Context, user domain.User, snap knowledge.Snapshot) error
	ListSources(ctx context.Context, userID domain.UserID) ([]storage.Source, error)
	SourceCards(ctx context.Context, sourceID int64) (map[string]domain.CardID, error)
	ReplaceSourceCards(ctx context.Context, sourceID int64, cards map[string]domain.CardID) error
	UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error
}

// Options configures a Syncer. Zero values select the defaults.
type Options struct {
	ReposDir    string // checkout root for git sources; default "repos"
	Pattern     string // deck files to read, relative to a source root; default "**/*.md"
	Knowledge   knowledge.Config
	Logger      *slog.Logger
	Now         func() time.Time
	GitProgress io.Writer
}

// Result summarises the reconciliation of one source.
type Result struct {
	SourceID int64
	Location string
	Parsed   int
	Added    int
	Removed  int
	Skipped  int
	Errors   int
}

type Syncer struct {
	store Store
	opts  Options
}

func New(store Store, opts Options) (*Syncer, error) {
	if opts.ReposDir == "" {
		opts.ReposDir = "repos"
	}
	if opts.Pattern == "" {
		opts.Pattern = "**/*.md"
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid deck pattern %q", opts.Pattern)
	}
	if opts.Knowledge == (knowledge.Config{}) {
		opts.Knowledge = knowledge.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{store: store, opts: opts}, nil
}

// Pattern returns the deck file pattern in use.
func (s *Syncer) Pattern() string {
	return s.opts.Pattern
}

// SyncUser fetches and reconciles every source of a learner.
func (s *Syncer) SyncUser(ctx context.Context, userID domain.UserID) ([]Result, error) {
	return s.syncSources(ctx, userID, func(storage.Source) bool { return true })
}

// SyncLocal reconciles only the learner's local directory sources.
func (s *Syncer) SyncLocal(ctx context.Context, userID domain.UserID) ([]Result, error) {
	return s.syncSources(ctx, userID, func(src storage.Source) bool { return src.Kind == storage.LocalSource })
}

type reconciled struct {
	source  storage.Source
	mapping map[string]domain.CardID
}

func (s *Syncer) syncSources(ctx context.Context, userID domain.UserID, include func(storage.Source) bool) ([]Result, error) {
	logger := s.opts.Logger

	learner, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if learner == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}

	sources, err := s.store.ListSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		logger.Info("No sources configured. Add one with: keikaku source add <path/or/url.git>", "user", learner.User.Username)
		return nil, nil
	}

	ks, err := knowledge.Restore(learner.Knowledge,
		knowledge.WithConfig(s.opts.Knowledge),
		knowledge.WithClock(s.opts.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}

	var (
		results []Result
		done    []reconciled
	)
	for _, source := range sources {
		if !include(source) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("Syncing source", "id", source.ID, "kind", source.Kind, "location", source.Location)

		dir, err := s.resolve(ctx, source)
		if err != nil {
			logger.Error("Error fetching source", "id", source.ID, "location", source.Location, "error", err)
			continue
		}
		existing, err := s.store.SourceCards(ctx, source.ID)
		if err != nil {
			return nil, err
		}

		mapping, res, err := s.reconcile(ks, source, dir, existing)
		if err != nil {
			logger.Error("Error reading source", "id", source.ID, "path", dir, "error", err)
			continue
		}
		results = append(results, res)
		done = append(done, reconciled{source: source, mapping: mapping})
	}

	if len(done) == 0 {
		return results, nil
	}
	if err := s.store.SaveUser(ctx, learner.User, ks.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", userID, err)
	}
	for _, r := range done {
		if err := s.store.ReplaceSourceCards(ctx, r.source.ID, r.mapping); err != nil {
			return nil, err
		}
		if err := s.store.UpdateSourceLastScanned(ctx, r.source.ID, s.opts.Now()); err != nil {
			logger.Warn("Failed to update last scanned for source", "source_id", r.source.ID, "error", err)
		}
	}
	return results, nil
}

// resolve returns the local directory holding a source's decks, fetching
// git sources first.
func (s *Syncer) resolve(ctx context.Context, source storage.Source) (string, error) {
	switch source.Kind {
	case storage.LocalSource:
		return source.Location, nil
	case storage.GitSource:
		dir, err := gitsource.LocalPath(s.opts.ReposDir, source.Location)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return "", fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, source.Location, dir, s.opts.GitProgress); err != nil {
			return "", err
		}
		return dir, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", source.Kind)
	}
}

type foundEntry struct {
	fingerprint string
	entry       parser.Entry
	file        string
}

func (s *Syncer) reconcile(ks *knowledge.KnowledgeSet, source storage.Source, dir string, existing map[string]domain.CardID) (map[string]domain.CardID, Result, error) {
	logger := s.opts.Logger.With("source_id", source.ID)
	res := Result{SourceID: source.ID, Location: source.Location}

	if _, err := os.Stat(dir); err != nil {
		return nil, res, err
	}
	files, err := doublestar.Glob(os.DirFS(dir), s.opts.Pattern, doublestar.WithFilesOnly(), doublestar.WithNoHidden())
	if err != nil {
		return nil, res, err
	}
	slices.Sort(files)

	var found []foundEntry
	seen := make(map[string]struct{})
	for _, name := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		entries, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			res.Errors++
			logger.Warn("Malformed deck lines", "file", path, "error", parseErr)
		}
		for _, e := range entries {
			res.Parsed++
			fp := knol.Fingerprint(e)
			if _, dup := seen[fp]; dup {
				res.Skipped++
				logger.Info("Duplicate entry in source, skipping", "file", path, "line", e.Line, "question", e.Question)
				continue
			}
			seen[fp] = struct{}{}
			found = append(found, foundEntry{fingerprint: fp, entry: e, file: path})
		}
	}

	// Deletions first, so an edited entry can take over its old question.
	for fp, id := range existing {
		if _, ok := seen[fp]; ok {
			continue
		}
		err := ks.DeleteCard(id)
		switch {
		case err == nil:
			res.Removed++
			logger.Info("Orphaned card, deleting", "card_id", id)
		case errors.Is(err, domain.ErrCardNotFound):
		default:
			return nil, res, err
		}
	}

	mapping := make(map[string]domain.CardID, len(found))
	for _, f := range found {
		if id, ok := existing[f.fingerprint]; ok {
			if _, present := ks.GetCard(id); present {
				mapping[f.fingerprint] = id
				continue
			}
		}

		card, err := f.entry.Card()
		if err != nil {
			res.Errors++
			logger.Warn("Invalid deck entry", "file", f.file, "line", f.entry.Line, "error", err)
			continue
		}
		sc, err := ks.CreateCard(card)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateCard) {
				res.Skipped++
				logger.Info("Card already exists, skipping", "file", f.file, "line", f.entry.Line, "question", card.Question())
				continue
			}
			return nil, res, err
		}
		res.Added++
		mapping[f.fingerprint] = sc.ID
		logger.Debug("New card found, inserting", "card_id", sc.ID, "question", card.Question())
	}

	logger.Info("reconciliation complete",
		"path", dir,
		"parsed", res.Parsed,
		"added", res.Added,
		"removed", res.Removed,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return mapping, res, nil
}
