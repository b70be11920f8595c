package store

import "context"

// NoteStore supplies pages of notes ordered by recency. Implementations must
// order by created_at descending with note ID descending as a tiebreak, and
// resume strictly after the cursor position.
type NoteStore interface {
	FetchPage(ctx context.Context, cursor Cursor, limit int) (Page, error)
}
