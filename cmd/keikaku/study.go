package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/memory"
)

var errQuit = errors.New("quit")

func studyCommand() command {
	fs := pflag.NewFlagSet("study", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "learner username")
	fixation := fs.Bool("fixation", false, "study struggling cards on the short-term schedule")
	return command{
		flags: fs,
		run: func(ctx context.Context, a *app, _ []string) error {
			id, err := a.userID(ctx, *user)
			if err != nil {
				return err
			}
			return studySession(ctx, a, id, *fixation)
		},
	}
}

// studySession walks the learner through one lesson: question, reveal,
// grade. The lesson counts as completed only when every card was graded.
func studySession(ctx context.Context, a *app, userID domain.UserID, fixation bool) error {
	var (
		items []knowledge.LessonItem
		err   error
	)
	if fixation {
		items, err = a.svc.SelectFixation(ctx, userID)
	} else {
		items, err = a.svc.SelectLesson(ctx, userID)
	}
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Nothing to study right now.")
		return nil
	}

	in := bufio.NewScanner(a.in)
	start := time.Now()
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "\n[%d/%d] %s\n", i+1, len(items), it.Card.Question())
		if _, err := prompt(in, a.out, "(enter to reveal) "); err != nil {
			return stopped(a, err)
		}
		printAnswer(a.out, it.Card)

		rating, err := askRating(in, a.out)
		if err != nil {
			return stopped(a, err)
		}
		state, err := a.svc.RateCard(ctx, userID, it.ID, mode(fixation), rating)
		if err != nil {
			return err
		}
		a.logger.Debug("card rated", "card", it.ID, "rating", rating, "state", state)
	}

	today, err := a.svc.CompleteLesson(ctx, userID, time.Since(start))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nLesson complete: %d cards. %d lessons today, %s studied.\n",
		len(items), today.LessonsCompleted, today.LessonDuration.Round(time.Second))
	return nil
}

func stopped(a *app, err error) error {
	if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		fmt.Fprintln(a.out, "\nLesson stopped, ratings so far are saved.")
		return nil
	}
	return err
}

func prompt(in *bufio.Scanner, out io.Writer, msg string) (string, error) {
	fmt.Fprint(out, msg)
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(in.Text())
	if line == "q" || line == "quit" {
		return "", errQuit
	}
	return line, nil
}

func askRating(in *bufio.Scanner, out io.Writer) (memory.Rating, error) {
	for {
		line, err := prompt(in, out, "rating [1 again, 2 hard, 3 good, 4 easy, q quit]: ")
		if err != nil {
			return 0, err
		}
		r, err := memory.ParseRating(line)
		if err == nil {
			return r, nil
		}
		fmt.Fprintln(out, err)
	}
}

func printAnswer(out io.Writer, card domain.Card) {
	fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(card.Answer().Text(), "\n", "\n  "))
	switch c := card.(type) {
	case domain.VocabularyCard:
		for _, ex := range c.Examples {
			fmt.Fprintf(out, "    %s  (%s)\n", ex.Text, ex.Translation)
		}
	case domain.KanjiCard:
		for _, w := range c.ExampleWords {
			fmt.Fprintf(out, "    %s  %s\n", w.Word, w.Meaning)
		}
	}
}
