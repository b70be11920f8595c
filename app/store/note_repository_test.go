package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestRepository(t *testing.T) *NoteRepository {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return NewNoteRepository(db)
}

func seedNotes(t *testing.T, repo *NoteRepository, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 0; i < n; i++ {
		note := Note{
			ID:        fmt.Sprintf("note_%03d", i),
			Text:      fmt.Sprintf("note body %d", i),
			CreatedAt: int64(1000 + i),
		}
		if err := repo.UpsertNote(ctx, note); err != nil {
			t.Fatalf("Failed to seed note %d: %v", i, err)
		}
	}
}

func TestNoteRepository_FetchPage_OrderedByRecency(t *testing.T) {
	repo := newTestRepository(t)
	seedNotes(t, repo, 10)

	page, err := repo.FetchPage(context.Background(), Cursor{}, 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(page.Notes) != 10 {
		t.Fatalf("Expected 10 notes, got %d", len(page.Notes))
	}
	for i := 1; i < len(page.Notes); i++ {
		if page.Notes[i].CreatedAt > page.Notes[i-1].CreatedAt {
			t.Errorf("Notes out of order at %d: %d after %d",
				i, page.Notes[i].CreatedAt, page.Notes[i-1].CreatedAt)
		}
	}
	if page.Notes[0].ID != "note_009" {
		t.Errorf("Expected newest note first, got %s", page.Notes[0].ID)
	}
}

func TestNoteRepository_FetchPage_CursorContinuation(t *testing.T) {
	repo := newTestRepository(t)
	seedNotes(t, repo, 10)
	ctx := context.Background()

	first, err := repo.FetchPage(ctx, Cursor{}, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(first.Notes) != 4 {
		t.Fatalf("Expected 4 notes, got %d", len(first.Notes))
	}

	last := first.Notes[len(first.Notes)-1]
	if first.NextCursor.ID != last.ID || first.NextCursor.CreatedAt != last.CreatedAt {
		t.Errorf("Cursor should point at the last note of the page")
	}

	second, err := repo.FetchPage(ctx, first.NextCursor, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, n := range first.Notes {
		seen[n.ID] = true
	}
	for _, n := range second.Notes {
		if seen[n.ID] {
			t.Errorf("Note %s returned on both pages", n.ID)
		}
		if n.CreatedAt > last.CreatedAt {
			t.Errorf("Continuation returned newer note %s than cursor", n.ID)
		}
	}
}

func TestNoteRepository_FetchPage_TiebreakOnID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Three notes sharing a timestamp must come back in stable id-desc order.
	for _, id := range []string{"b", "a", "c"} {
		if err := repo.UpsertNote(ctx, Note{ID: id, CreatedAt: 5000}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.FetchPage(ctx, Cursor{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Notes[0].ID != "c" || page.Notes[1].ID != "b" {
		t.Fatalf("Expected c,b with id tiebreak, got %s,%s", page.Notes[0].ID, page.Notes[1].ID)
	}

	rest, err := repo.FetchPage(ctx, page.NextCursor, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest.Notes) != 1 || rest.Notes[0].ID != "a" {
		t.Fatalf("Expected remaining note a, got %+v", rest.Notes)
	}
}

func TestNoteRepository_FetchPage_Exhausted(t *testing.T) {
	repo := newTestRepository(t)
	seedNotes(t, repo, 3)
	ctx := context.Background()

	page, err := repo.FetchPage(ctx, Cursor{}, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Notes) != 3 {
		t.Fatalf("Expected 3 notes, got %d", len(page.Notes))
	}

	empty, err := repo.FetchPage(ctx, page.NextCursor, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Notes) != 0 {
		t.Errorf("Expected empty page past the end, got %d notes", len(empty.Notes))
	}
	if !empty.NextCursor.IsZero() {
		t.Errorf("Empty page should carry a zero cursor")
	}
}

func TestNoteRepository_UpsertNote_Idempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	note := Note{ID: "dup", Text: "first", CreatedAt: 100}
	if err := repo.UpsertNote(ctx, note); err != nil {
		t.Fatal(err)
	}
	note.Text = "second"
	if err := repo.UpsertNote(ctx, note); err != nil {
		t.Fatal(err)
	}

	count, err := repo.GetNoteCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 note after double upsert, got %d", count)
	}

	page, err := repo.FetchPage(ctx, Cursor{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if page.Notes[0].Text != "second" {
		t.Errorf("Upsert should replace fields, got %q", page.Notes[0].Text)
	}
}
