package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/fsrs"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/memory"
	"github.com/conorfennell/keikaku/internal/storage"
	"github.com/conorfennell/keikaku/internal/study"
	"github.com/conorfennell/keikaku/internal/sync"
	"github.com/conorfennell/keikaku/internal/watch"
)

func commands() map[string]command {
	return map[string]command{
		"user add":      userAddCommand(),
		"user list":     simpleCommand("user list", runUserList),
		"card add":      cardAddCommand(),
		"card delete":   userCommand("card delete", runCardDelete),
		"card list":     userCommand("card list", runCardList),
		"lesson":        userCommand("lesson", runLesson),
		"fixation":      userCommand("fixation", runFixation),
		"rate":          rateCommand(),
		"complete":      completeCommand(),
		"study":         studyCommand(),
		"history":       userCommand("history", runHistory),
		"source add":    userCommand("source add", runSourceAdd),
		"source list":   userCommand("source list", runSourceList),
		"source delete": userCommand("source delete", runSourceDelete),
		"sync":          syncCommand(),
	}
}

func simpleCommand(name string, fn func(ctx context.Context, a *app, args []string) error) command {
	return command{flags: pflag.NewFlagSet(name, pflag.ContinueOnError), run: fn}
}

// userCommand wraps a handler that acts on the learner named by --user.
func userCommand(name string, fn func(ctx context.Context, a *app, userID domain.UserID, args []string) error) command {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "learner username")
	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, args []string) error {
			id, err := a.userID(ctx, *user)
			if err != nil {
				return err
			}
			return fn(ctx, a, id, args)
		},
	}
}

func userAddCommand() command {
	fs := pflag.NewFlagSet("user add", pflag.ContinueOnError)
	level := fs.String("level", "", "JLPT level: N5..N1")
	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, args []string) error {
			if len(args) != 1 {
				return errors.New("usage: keikaku user add <name>")
			}
			lang, err := domain.ParseNativeLanguage(a.cfg.Language)
			if err != nil {
				return err
			}
			u := domain.User{ID: domain.NewUserID(), Username: args[0], NativeLanguage: lang}
			if *level != "" {
				if u.Level, err = domain.ParseJapaneseLevel(*level); err != nil {
					return err
				}
			}
			if err := a.db.CreateUser(ctx, u); err != nil {
				return err
			}
			a.logger.Info("user created", "user", u.Username, "id", u.ID, "language", u.NativeLanguage)
			fmt.Fprintf(a.out, "%s\t%s\n", u.ID, u.Username)
			return nil
		},
	}
}

func runUserList(ctx context.Context, a *app, _ []string) error {
	users, err := a.db.ListUsers(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tLEVEL")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.NativeLanguage, u.Level)
	}
	return w.Flush()
}

func cardAddCommand() command {
	fs := pflag.NewFlagSet("card add", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "learner username")
	kind := fs.String("kind", string(domain.KindVocabulary), "vocabulary, kanji or grammar")
	question := fs.StringP("question", "q", "", "prompt text")
	answer := fs.StringP("answer", "a", "", "expected answer")
	pos := fs.String("pos", "", "part of speech of a vocabulary word")
	level := fs.String("level", "", "JLPT level of a kanji")
	applyTo := fs.StringSlice("apply-to", nil, "parts of speech a grammar rule applies to")
	examples := fs.StringArray("example", nil, "example phrase as 'text | translation' (repeatable)")

	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, _ []string) error {
			id, err := a.userID(ctx, *user)
			if err != nil {
				return err
			}
			draft := study.CardDraft{
				Kind:         domain.Kind(*kind),
				Question:     *question,
				Answer:       *answer,
				PartOfSpeech: domain.PartOfSpeech(*pos),
				Level:        domain.JapaneseLevel(strings.ToUpper(*level)),
			}
			for _, p := range *applyTo {
				draft.ApplyTo = append(draft.ApplyTo, domain.PartOfSpeech(p))
			}
			for _, ex := range *examples {
				text, translation, ok := strings.Cut(ex, "|")
				if !ok {
					return fmt.Errorf("example %q must be 'text | translation'", ex)
				}
				draft.Examples = append(draft.Examples, domain.ExamplePhrase{
					Text:        strings.TrimSpace(text),
					Translation: strings.TrimSpace(translation),
				})
			}

			sc, err := a.svc.CreateCard(ctx, id, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\n", sc.ID, sc.Question())
			return nil
		},
	}
}

func runCardDelete(ctx context.Context, a *app, userID domain.UserID, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: keikaku card delete --user U <card-id>")
	}
	cardID, err := domain.ParseCardID(args[0])
	if err != nil {
		return err
	}
	return a.svc.DeleteCard(ctx, userID, cardID)
}

func runCardList(ctx context.Context, a *app, userID domain.UserID, _ []string) error {
	ks, err := a.svc.KnowledgeSet(ctx, userID)
	if err != nil {
		return err
	}
	th := ks.Config().Thresholds
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tQUESTION\tSTATUS\tNEXT REVIEW\tREVIEWS")
	for _, c := range ks.Cards() {
		next := "-"
		if c.Memory.NextReviewDate != nil {
			next = c.Memory.NextReviewDate.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			c.ID, c.Card.Kind(), c.Question(), status(c.Memory, th), next, len(c.Memory.Reviews))
	}
	return w.Flush()
}

func status(m memory.State, th memory.Thresholds) string {
	switch {
	case m.IsNew():
		return "new"
	case m.IsKnownCard(th):
		return "known"
	case m.IsHighDifficulty(th):
		return "high difficulty"
	case m.IsLowStability(th):
		return "low stability"
	default:
		return "in progress"
	}
}

func printItems(a *app, items []knowledge.LessonItem) error {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Nothing to study right now.")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tQUESTION\tANSWER")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Card.Kind(), it.Card.Question(), oneLine(it.Card.Answer().Text()))
	}
	return w.Flush()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " / ")
}

func runLesson(ctx context.Context, a *app, userID domain.UserID, _ []string) error {
	items, err := a.svc.SelectLesson(ctx, userID)
	if err != nil {
		return err
	}
	return printItems(a, items)
}

func runFixation(ctx context.Context, a *app, userID domain.UserID, _ []string) error {
	items, err := a.svc.SelectFixation(ctx, userID)
	if err != nil {
		return err
	}
	return printItems(a, items)
}

func rateCommand() command {
	fs := pflag.NewFlagSet("rate", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "learner username")
	fixation := fs.Bool("fixation", false, "rate on the short-term fixation schedule")
	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, args []string) error {
			if len(args) != 2 {
				return errors.New("usage: keikaku rate --user U <card-id> <rating>")
			}
			id, err := a.userID(ctx, *user)
			if err != nil {
				return err
			}
			cardID, err := domain.ParseCardID(args[0])
			if err != nil {
				return err
			}
			rating, err := memory.ParseRating(args[1])
			if err != nil {
				return err
			}
			state, err := a.svc.RateCard(ctx, id, cardID, mode(*fixation), rating)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, state)
			return nil
		},
	}
}

func mode(fixation bool) fsrs.Mode {
	if fixation {
		return fsrs.FixationLesson
	}
	return fsrs.StandardLesson
}

func completeCommand() command {
	fs := pflag.NewFlagSet("complete", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "learner username")
	duration := fs.Duration("duration", 0, "time spent on the lesson")
	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, _ []string) error {
			id, err := a.userID(ctx, *user)
			if err != nil {
				return err
			}
			if *duration < 0 {
				return errors.New("--duration cannot be negative")
			}
			today, err := a.svc.CompleteLesson(ctx, id, *duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d lessons today, %s studied\n", today.LessonsCompleted, today.LessonDuration.Round(time.Second))
			return nil
		},
	}
}

func runHistory(ctx context.Context, a *app, userID domain.UserID, _ []string) error {
	history, err := a.svc.History(ctx, userID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tLESSONS\tTIME\tTOTAL\tKNOWN\tNEW\tIN PROGRESS\tLOW STABILITY\tHIGH DIFFICULTY\tAVG STABILITY\tAVG DIFFICULTY")
	for _, h := range history {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			h.Day().Format(time.DateOnly),
			h.LessonsCompleted,
			h.LessonDuration.Round(time.Second),
			h.TotalWords,
			h.KnownWords,
			h.NewWords,
			h.InProgressWords,
			h.LowStabilityWords,
			h.HighDifficultyWords,
			optional(h.AvgStability),
			optional(h.AvgDifficulty),
		)
	}
	return w.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func runSourceAdd(ctx context.Context, a *app, userID domain.UserID, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: keikaku source add --user U <path|git-url>")
	}
	kind, location, err := classifySource(args[0])
	if err != nil {
		return err
	}
	id, err := a.db.InsertSource(ctx, userID, kind, location)
	if err != nil {
		return err
	}
	a.logger.Info("source added", "id", id, "kind", kind, "location", location)
	fmt.Fprintf(a.out, "%d\t%s\t%s\n", id, kind, location)
	return nil
}

// classifySource treats http(s) and scp-like URLs as git sources and
// anything else as a local directory.
func classifySource(arg string) (storage.SourceKind, string, error) {
	if u, err := url.Parse(arg); err == nil && (u.Scheme == "https" || u.Scheme == "http") {
		return storage.GitSource, arg, nil
	}
	if strings.HasPrefix(arg, "git@") {
		return storage.GitSource, arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", "", err
	}
	return storage.LocalSource, abs, nil
}

func runSourceList(ctx context.Context, a *app, userID domain.UserID, _ []string) error {
	sources, err := a.db.ListSources(ctx, userID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tLOCATION\tLAST SCANNED")
	for _, s := range sources {
		scanned := "never"
		if s.LastScanned.Valid {
			scanned = s.LastScanned.Time.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.Kind, s.Location, scanned)
	}
	return w.Flush()
}

func runSourceDelete(ctx context.Context, a *app, userID domain.UserID, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: keikaku source delete --user U <source-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source id %q: %w", args[0], err)
	}
	s, err := a.db.FindSource(ctx, id)
	if err != nil {
		return err
	}
	if s == nil || s.UserID != userID {
		return fmt.Errorf("source %d not found", id)
	}
	return a.db.DeleteSource(ctx, id)
}

func syncCommand() command {
	fs := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "learner username")
	watchMode := fs.Bool("watch", false, "keep running and re-sync local sources on change")
	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, _ []string) error {
			id, err := a.userID(ctx, *user)
			if err != nil {
				return err
			}
			syncer, err := sync.New(a.db, sync.Options{
				ReposDir:  a.cfg.Sync.ReposDir,
				Pattern:   a.cfg.Sync.Pattern,
				Knowledge: a.cfg.Knowledge(),
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			results, err := syncer.SyncUser(ctx, id)
			if err != nil {
				return err
			}
			printResults(a, results)
			if !*watchMode {
				return nil
			}
			return watchSources(ctx, a, syncer, id)
		},
	}
}

func printResults(a *app, results []sync.Result) {
	for _, r := range results {
		fmt.Fprintf(a.out, "%s: %d parsed, %d added, %d removed, %d skipped, %d errors\n",
			r.Location, r.Parsed, r.Added, r.Removed, r.Skipped, r.Errors)
	}
}

func watchSources(ctx context.Context, a *app, syncer *sync.Syncer, userID domain.UserID) error {
	sources, err := a.db.ListSources(ctx, userID)
	if err != nil {
		return err
	}
	w, err := watch.New(syncer.Pattern(), a.cfg.Sync.Debounce, a.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	roots := 0
	for _, s := range sources {
		if s.Kind != storage.LocalSource {
			continue
		}
		if err := w.AddRoot(s.Location); err != nil {
			a.logger.Warn("cannot watch source", "id", s.ID, "location", s.Location, "error", err)
			continue
		}
		roots++
	}
	if roots == 0 {
		return errors.New("no local sources to watch")
	}

	err = w.Run(ctx, func(ctx context.Context, _ []string) {
		results, err := syncer.SyncLocal(ctx, userID)
		if err != nil {
			a.logger.Error("re-sync failed", "error", err)
			return
		}
		printResults(a, results)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
