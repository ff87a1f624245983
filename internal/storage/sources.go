package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/keikaku/internal/domain"
)

// SourceKind says how a deck source is fetched.
type SourceKind string

const (
	LocalSource SourceKind = "local"
	GitSource   SourceKind = "git"
)

// Source represents a deck source, either a local directory or a git URL.
type Source struct {
	ID          int64
	UserID      domain.UserID
	Kind        SourceKind
	Location    string
	LastScanned sql.NullTime
}

// InsertSource registers a deck source for a learner and returns its ID.
func (db *DB) InsertSource(ctx context.Context, userID domain.UserID, kind SourceKind, location string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (user_id, kind, location)
		VALUES (?, ?, ?)
	`, userID.String(), string(kind), location)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", location, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", location, err)
	}
	return id, nil
}

// FindSource retrieves a source by its ID. It returns nil when absent.
func (db *DB) FindSource(ctx context.Context, id int64) (*Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, kind, location, last_scanned
		FROM sources WHERE id = ?
	`, id)
	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, err
	}
	return &s, nil
}

// ListSources returns a learner's deck sources in registration order.
func (db *DB) ListSources(ctx context.Context, userID domain.UserID) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, kind, location, last_scanned
		FROM sources WHERE user_id = ?
		ORDER BY id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get sources for user %s: %w", userID, err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteSource forgets a source and its entry mapping. Cards already imported
// stay in the learner's knowledge set.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastScanned sets the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", id, err)
	}
	return nil
}

// SourceCards returns the card each fingerprinted entry of a source became.
func (db *DB) SourceCards(ctx context.Context, sourceID int64) (map[string]domain.CardID, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT fingerprint, card_id
		FROM source_cards WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	cards := make(map[string]domain.CardID)
	for rows.Next() {
		var fingerprint, rawID string
		if err := rows.Scan(&fingerprint, &rawID); err != nil {
			return nil, fmt.Errorf("failed to scan source card row for source ID %d: %w", sourceID, err)
		}
		id, err := domain.ParseCardID(rawID)
		if err != nil {
			return nil, err
		}
		cards[fingerprint] = id
	}
	return cards, rows.Err()
}

// ReplaceSourceCards overwrites the entry mapping of a source.
func (db *DB) ReplaceSourceCards(ctx context.Context, sourceID int64, cards map[string]domain.CardID) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_cards WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to clear cards for source ID %d: %w", sourceID, err)
	}
	for fingerprint, id := range cards {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO source_cards (source_id, fingerprint, card_id)
			VALUES (?, ?, ?)
		`, sourceID, fingerprint, id.String())
		if err != nil {
			return fmt.Errorf("failed to insert card %s for source ID %d: %w", id, sourceID, err)
		}
	}
	return tx.Commit()
}

func scanSource(row rowScanner) (Source, error) {
	var (
		s           Source
		rawID, kind string
	)
	if err := row.Scan(&s.ID, &rawID, &kind, &s.Location, &s.LastScanned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("failed to scan source row: %w", err)
	}
	id, err := domain.ParseUserID(rawID)
	if err != nil {
		return s, err
	}
	s.UserID = id
	s.Kind = SourceKind(kind)
	return s, nil
}
