// Package config loads keikaku settings from defaults, an optional YAML file,
// KEIKAKU_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/fsrs"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/memory"
)

const (
	envPrefix = "KEIKAKU_"
	delim     = "."
)

type Config struct {
	Database string   `koanf:"database" validate:"required"`
	LogLevel string   `koanf:"log_level" validate:"oneof=debug info warn error"`
	Language string   `koanf:"language" validate:"oneof=english russian"`
	Schedule Schedule `koanf:"schedule"`
	SRS      SRS      `koanf:"srs"`
	Sync     Sync     `koanf:"sync"`
}

// Schedule tunes lesson and fixation selection.
type Schedule struct {
	NewCardsLimit  int     `koanf:"new_cards_limit" validate:"gte=0"`
	HardCardsLimit int     `koanf:"hard_cards_limit" validate:"gte=0"`
	LowStability   float64 `koanf:"low_stability" validate:"gte=0"`
	KnownStability float64 `koanf:"known_stability" validate:"gtfield=LowStability"`
	HighDifficulty float64 `koanf:"high_difficulty" validate:"gt=0"`
}

// SRS tunes the long-term and short-term review schedules.
type SRS struct {
	DesiredRetention     float64       `koanf:"desired_retention" validate:"gt=0,lt=1"`
	ShortTermRetention   float64       `koanf:"short_term_retention" validate:"gt=0,lt=1"`
	ShortTermMaxInterval time.Duration `koanf:"short_term_max_interval" validate:"gte=24h"`
	MaximumInterval      time.Duration `koanf:"maximum_interval" validate:"gtefield=ShortTermMaxInterval"`
}

// Sync configures deck source reconciliation.
type Sync struct {
	ReposDir string        `koanf:"repos_dir" validate:"required"`
	Pattern  string        `koanf:"pattern" validate:"required"`
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`
}

var defaults = map[string]any{
	"database":                    "keikaku.db",
	"log_level":                   "info",
	"language":                    string(domain.English),
	"schedule.new_cards_limit":    knowledge.NewCardsLimit,
	"schedule.hard_cards_limit":   knowledge.HardCardsLimit,
	"schedule.low_stability":      2.0,
	"schedule.known_stability":    10.0,
	"schedule.high_difficulty":    7.0,
	"srs.desired_retention":       0.9,
	"srs.short_term_retention":    0.95,
	"srs.short_term_max_interval": 24 * time.Hour,
	"srs.maximum_interval":        36500 * 24 * time.Hour,
	"sync.repos_dir":              "repos",
	"sync.pattern":                "**/*.md",
	"sync.debounce":               500 * time.Millisecond,
}

// RegisterFlags adds the global flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("database", "keikaku.db", "path to the SQLite database")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("language", string(domain.English), "native language for new users: english or russian")
}

// Load builds the configuration. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(delim)

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path := configPath(flags); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, delim, func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", delim)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, delim, k, func(f *pflag.Flag) (string, any) {
			if f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return os.Getenv(envPrefix + "CONFIG")
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("invalid config: %w", err)
}

// Knowledge returns the selection policy for knowledge sets.
func (c *Config) Knowledge() knowledge.Config {
	return knowledge.Config{
		Thresholds: memory.Thresholds{
			LowStability:   c.Schedule.LowStability,
			KnownStability: c.Schedule.KnownStability,
			HighDifficulty: c.Schedule.HighDifficulty,
		},
		NewCardsLimit:  c.Schedule.NewCardsLimit,
		HardCardsLimit: c.Schedule.HardCardsLimit,
	}
}

// Schedules returns the long-term and short-term review parameters.
func (c *Config) Schedules() (long, short *fsrs.Params) {
	long = fsrs.DefaultParams()
	long.DesiredRetention = c.SRS.DesiredRetention
	long.MaximumInterval = c.SRS.MaximumInterval

	short = fsrs.ShortTermParams()
	short.DesiredRetention = c.SRS.ShortTermRetention
	short.MaximumInterval = c.SRS.ShortTermMaxInterval
	return long, short
}

// NativeLanguage returns the default language for new learners.
func (c *Config) NativeLanguage() domain.NativeLanguage {
	return domain.NativeLanguage(c.Language)
}

// Level returns the slog level named by log_level.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
