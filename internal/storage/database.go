package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/keikaku/internal/domain"
	"github.com/conorfennell/keikaku/internal/knowledge"
	"github.com/conorfennell/keikaku/internal/memory"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the foreign_keys pragma in effect for every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Learner is a user together with their persisted knowledge set.
type Learner struct {
	User      domain.User
	Knowledge knowledge.Snapshot
}

// CreateUser inserts a learner with an empty knowledge set.
func (db *DB) CreateUser(ctx context.Context, user domain.User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, native_language, level, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID.String(), user.Username, string(user.NativeLanguage), string(user.Level), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", user.Username, err)
	}
	return nil
}

// ListUsers returns all learners ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, username, native_language, level
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindUserByName retrieves a learner's profile by username. It returns nil
// when no such learner exists.
func (db *DB) FindUserByName(ctx context.Context, username string) (*domain.User, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, username, native_language, level
		FROM users WHERE username = ?
	`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindUser loads a learner and their knowledge set. It returns nil when no
// such learner exists.
func (db *DB) FindUser(ctx context.Context, id domain.UserID) (*Learner, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, username, native_language, level
		FROM users WHERE id = ?
	`, id.String())
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	cards, err := db.studyCards(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := db.lessonHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Learner{
		User:      u,
		Knowledge: knowledge.Snapshot{StudyCards: cards, LessonHistory: history},
	}, nil
}

// SaveUser writes the learner's profile and replaces their whole knowledge
// set in a single transaction. The last writer wins.
func (db *DB) SaveUser(ctx context.Context, user domain.User, snap knowledge.Snapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET username = ?, native_language = ?, level = ?
		WHERE id = ?
	`, user.Username, string(user.NativeLanguage), string(user.Level), user.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to save user %s: %w", user.ID, domain.ErrUserNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_cards WHERE user_id = ?`, user.ID.String()); err != nil {
		return fmt.Errorf("failed to clear study cards for user %s: %w", user.ID, err)
	}
	for _, sc := range snap.StudyCards {
		content, err := domain.MarshalCard(sc.Card)
		if err != nil {
			return fmt.Errorf("failed to encode card %s: %w", sc.ID, err)
		}
		mem, err := json.Marshal(sc.Memory)
		if err != nil {
			return fmt.Errorf("failed to encode memory state for card %s: %w", sc.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO study_cards (card_id, user_id, kind, question, content, memory)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sc.ID.String(), user.ID.String(), string(sc.Card.Kind()), sc.Question().Text(), string(content), string(mem))
		if err != nil {
			return fmt.Errorf("failed to insert card %s: %w", sc.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lesson_history WHERE user_id = ?`, user.ID.String()); err != nil {
		return fmt.Errorf("failed to clear lesson history for user %s: %w", user.ID, err)
	}
	for _, h := range snap.LessonHistory {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lesson_history (
				user_id, day, timestamp, avg_stability, avg_difficulty,
				total_words, known_words, new_words, in_progress_words,
				low_stability_words, high_difficulty_words,
				lessons_completed, lesson_duration_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			user.ID.String(),
			h.Day().Format(time.DateOnly),
			h.Timestamp.UTC(),
			h.AvgStability,
			h.AvgDifficulty,
			h.TotalWords,
			h.KnownWords,
			h.NewWords,
			h.InProgressWords,
			h.LowStabilityWords,
			h.HighDifficultyWords,
			h.LessonsCompleted,
			int64(h.LessonDuration),
		)
		if err != nil {
			return fmt.Errorf("failed to insert history for %s: %w", h.Day().Format(time.DateOnly), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit knowledge set for user %s: %w", user.ID, err)
	}
	return nil
}

// DeleteUser removes a learner together with everything they own.
func (db *DB) DeleteUser(ctx context.Context, id domain.UserID) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

func (db *DB) studyCards(ctx context.Context, userID domain.UserID) ([]knowledge.StudyCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, content, memory
		FROM study_cards WHERE user_id = ?
		ORDER BY card_id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get study cards for user %s: %w", userID, err)
	}
	defer rows.Close()

	var cards []knowledge.StudyCard
	for rows.Next() {
		var rawID, content, mem string
		if err := rows.Scan(&rawID, &content, &mem); err != nil {
			return nil, fmt.Errorf("failed to scan study card row: %w", err)
		}
		id, err := domain.ParseCardID(rawID)
		if err != nil {
			return nil, err
		}
		card, err := domain.UnmarshalCard([]byte(content))
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", id, err)
		}
		var state memory.State
		if err := json.Unmarshal([]byte(mem), &state); err != nil {
			return nil, fmt.Errorf("failed to decode memory state for card %s: %w", id, err)
		}
		cards = append(cards, knowledge.StudyCard{ID: id, Card: card, Memory: state})
	}
	return cards, rows.Err()
}

func (db *DB) lessonHistory(ctx context.Context, userID domain.UserID) ([]knowledge.DailyHistoryItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT timestamp, avg_stability, avg_difficulty,
			total_words, known_words, new_words, in_progress_words,
			low_stability_words, high_difficulty_words,
			lessons_completed, lesson_duration_ns
		FROM lesson_history WHERE user_id = ?
		ORDER BY day
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson history for user %s: %w", userID, err)
	}
	defer rows.Close()

	var history []knowledge.DailyHistoryItem
	for rows.Next() {
		var (
			h             knowledge.DailyHistoryItem
			avgStability  sql.NullFloat64
			avgDifficulty sql.NullFloat64
			durationNanos int64
		)
		if err := rows.Scan(
			&h.Timestamp,
			&avgStability,
			&avgDifficulty,
			&h.TotalWords,
			&h.KnownWords,
			&h.NewWords,
			&h.InProgressWords,
			&h.LowStabilityWords,
			&h.HighDifficultyWords,
			&h.LessonsCompleted,
			&durationNanos,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lesson history row: %w", err)
		}
		h.Timestamp = h.Timestamp.UTC()
		if avgStability.Valid {
			h.AvgStability = &avgStability.Float64
		}
		if avgDifficulty.Valid {
			h.AvgDifficulty = &avgDifficulty.Float64
		}
		h.LessonDuration = time.Duration(durationNanos)
		history = append(history, h)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u           domain.User
		rawID, lang string
		level       string
	)
	if err := row.Scan(&rawID, &u.Username, &lang, &level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, err
		}
		return u, fmt.Errorf("failed to scan user row: %w", err)
	}
	id, err := domain.ParseUserID(rawID)
	if err != nil {
		return u, err
	}
	u.ID = id
	u.NativeLanguage = domain.NativeLanguage(lang)
	u.Level = domain.JapaneseLevel(level)
	return u, nil
}
