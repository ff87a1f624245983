package storage

import (
	"context"
	"testing"

	"github.com/conorfennell/keikaku/internal/domain"
)

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	user := createTestUser(t, db, "aiko")

	localID, err := db.InsertSource(ctx, user.ID, LocalSource, "/decks/n5")
	if err != nil {
		t.Fatalf("InsertSource() error = %v", err)
	}
	gitID, err := db.InsertSource(ctx, user.ID, GitSource, "https://example.com/decks.git")
	if err != nil {
		t.Fatalf("InsertSource() error = %v", err)
	}
	if _, err := db.InsertSource(ctx, user.ID, LocalSource, "/decks/n5"); err == nil {
		t.Error("Expected an error registering the same location twice")
	}

	sources, err := db.ListSources(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSources() error = %v", err)
	}
	if len(sources) != 2 || sources[0].ID != localID || sources[1].Kind != GitSource {
		t.Fatalf("Unexpected sources %+v", sources)
	}
	if sources[0].LastScanned.Valid {
		t.Error("Expected a new source to have no last scanned time")
	}

	if err := db.UpdateSourceLastScanned(ctx, localID, t0); err != nil {
		t.Fatalf("UpdateSourceLastScanned() error = %v", err)
	}
	s, err := db.FindSource(ctx, localID)
	if err != nil {
		t.Fatalf("FindSource() error = %v", err)
	}
	if s == nil || !s.LastScanned.Valid || !s.LastScanned.Time.Equal(t0) {
		t.Errorf("Expected last scanned %v, got %+v", t0, s)
	}
	if s.UserID != user.ID {
		t.Errorf("Expected owner %s, got %s", user.ID, s.UserID)
	}

	if err := db.DeleteSource(ctx, gitID); err != nil {
		t.Fatalf("DeleteSource() error = %v", err)
	}
	if s, err := db.FindSource(ctx, gitID); err != nil || s != nil {
		t.Errorf("Expected nil, nil after delete, got %+v, %v", s, err)
	}
}

func TestReplaceSourceCards(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	user := createTestUser(t, db, "aiko")

	sourceID, err := db.InsertSource(ctx, user.ID, LocalSource, "/decks/n5")
	if err != nil {
		t.Fatalf("InsertSource() error = %v", err)
	}

	a, b := domain.NewCardID(), domain.NewCardID()
	if err := db.ReplaceSourceCards(ctx, sourceID, map[string]domain.CardID{"fa": a, "fb": b}); err != nil {
		t.Fatalf("ReplaceSourceCards() error = %v", err)
	}
	if err := db.ReplaceSourceCards(ctx, sourceID, map[string]domain.CardID{"fb": b}); err != nil {
		t.Fatalf("ReplaceSourceCards() error = %v", err)
	}

	got, err := db.SourceCards(ctx, sourceID)
	if err != nil {
		t.Fatalf("SourceCards() error = %v", err)
	}
	if len(got) != 1 || got["fb"] != b {
		t.Errorf("Expected only fb -> %s, got %v", b, got)
	}

	if err := db.DeleteSource(ctx, sourceID); err != nil {
		t.Fatalf("DeleteSource() error = %v", err)
	}
	got, err = db.SourceCards(ctx, sourceID)
	if err != nil {
		t.Fatalf("SourceCards() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected mapping to cascade on delete, got %v", got)
	}
}
