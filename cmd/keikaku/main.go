package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/keikaku/internal/config"
	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/fsrs"
	"github.com/conorfennell/keikaku/internal/storage"
	"github.com/conorfennell/keikaku/internal/study"
	"github.com/conorfennell/keikaku/internal/variant"
)

const usage = `Usage: keikaku <command> [flags] [args]

Commands:
  user add <name> [--language L] [--level N5]   register a learner
  user list                                      list learners
  card add --user U --question Q --answer A      add a card (--kind, --pos, --level, --apply-to, --example)
  card delete --user U <card-id>                 delete a card
  card list --user U                             list cards with their memory state
  lesson --user U                                show the next lesson
  fixation --user U                              show cards that need fixation
  rate --user U [--fixation] <card-id> <rating>  grade a card (again, hard, good, easy or 1-4)
  complete --user U --duration 10m               record a finished lesson
  study --user U [--fixation]                    run an interactive lesson
  history --user U                               show daily lesson history
  source add --user U <path|git-url>             register a deck source
  source list --user U                           list deck sources
  source delete --user U <source-id>             forget a deck source
  sync --user U [--watch]                        import decks from every source

Global flags:
  --config, --database, --log-level, --language
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "keikaku: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *storage.DB
	svc    *study.Service
	in     io.Reader
	out    io.Writer
}

type command struct {
	flags *pflag.FlagSet
	run   func(ctx context.Context, a *app, args []string) error
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}

	registry := commands()
	name, args := args[0], args[1:]
	if name == "user" || name == "card" || name == "source" {
		i := subcommandIndex(registry, name, args)
		if i < 0 {
			return fmt.Errorf("%s needs a subcommand, see 'keikaku help'", name)
		}
		name = name + " " + args[i]
		args = append(slices.Clone(args[:i]), args[i+1:]...)
	}

	cmd, ok := registry[name]
	if !ok {
		return fmt.Errorf("unknown command %q, see 'keikaku help'", name)
	}
	config.RegisterFlags(cmd.flags)
	cmd.flags.SetOutput(errOut)
	if err := cmd.flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(cmd.flags)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Debug("database opened", "path", cfg.Database)

	long, short := cfg.Schedules()
	policy, err := fsrs.NewService(long, short)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	svc := study.NewService(db, policy,
		study.WithConfig(cfg.Knowledge()),
		study.WithLogger(logger),
		study.WithRand(rng),
		study.WithSelector(variant.NewSelector(cfg.Knowledge().Thresholds, rng, nil)),
	)

	a := &app{cfg: cfg, logger: logger, db: db, svc: svc, in: in, out: out}
	return cmd.run(ctx, a, cmd.flags.Args())
}

// subcommandIndex finds the first non-flag argument naming a subcommand of
// group. Flags may appear before it. It returns -1 when there is none.
func subcommandIndex(registry map[string]command, group string, args []string) int {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if _, ok := registry[group+" "+arg]; ok {
			return i
		}
	}
	return -1
}

// userID resolves a --user flag value to a learner id.
func (a *app) userID(ctx context.Context, username string) (domain.UserID, error) {
	if username == "" {
		return domain.UserID{}, errors.New("--user is required")
	}
	u, err := a.db.FindUserByName(ctx, username)
	if err != nil {
		return domain.UserID{}, err
	}
	if u == nil {
		return domain.UserID{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, username)
	}
	return u.ID, nil
}
