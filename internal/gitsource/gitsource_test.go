package gitsource

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "https", url: "https://github.com/owner/decks.git", want: filepath.Join("repos", "github.com", "owner", "decks")},
		{name: "http without suffix", url: "http://git.example.com/owner/decks", want: filepath.Join("repos", "git.example.com", "owner", "decks")},
		{name: "scp-like", url: "git@github.com:owner/decks.git", want: filepath.Join("repos", "github.com", "owner", "decks")},
		{name: "local path", url: "/home/me/decks", wantErr: true},
		{name: "https without path", url: "https://github.com", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got path %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected '%s', got '%s'", tc.want, got)
			}
		})
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err = wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "Deck Author", Email: "decks@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestSyncClonesThenPulls(t *testing.T) {
	// go-git serves file:// remotes through git-upload-pack.
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	upstreamDir := t.TempDir()
	upstream, err := git.PlainInit(upstreamDir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	commitFile(t, upstream, upstreamDir, "n5.md", "Q: 水\nA: water\n")

	checkout := filepath.Join(t.TempDir(), "checkout")
	if err := Sync(ctx, upstreamDir, checkout, nil); err != nil {
		t.Fatalf("Sync() clone error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(checkout, "n5.md")); err != nil {
		t.Fatalf("Expected cloned deck file: %v", err)
	}

	if err := Sync(ctx, upstreamDir, checkout, nil); err != nil {
		t.Fatalf("Sync() on an up-to-date checkout error = %v", err)
	}

	commitFile(t, upstream, upstreamDir, "n4.md", "Q: 火\nA: fire\n")
	if err := Sync(ctx, upstreamDir, checkout, nil); err != nil {
		t.Fatalf("Sync() pull error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(checkout, "n4.md")); err != nil {
		t.Errorf("Expected pulled deck file: %v", err)
	}
}
