package store

import (
	"context"
	"database/sql"
	"fmt"
)

var _ NoteStore = (*NoteRepository)(nil)

// NoteRepository is the SQLite-backed note store. It serves ordered pages
// with keyset pagination, matching the contract of the remote document store
// the mobile client talks to.
type NoteRepository struct {
	db *DB
}

func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// FetchPage returns up to limit notes ordered newest first, starting
// strictly after the cursor position. A zero cursor starts from the top.
func (r *NoteRepository) FetchPage(ctx context.Context, cursor Cursor, limit int) (Page, error) {
	query := `
		SELECT id, text, summary, user_id, user_name, user_pic,
		       lat, lng, created_at, like_count,
		       image_base64, image_width, image_height
		FROM notes`
	args := []interface{}{}

	if !cursor.IsZero() {
		query += `
		WHERE created_at < ? OR (created_at = ? AND id < ?)`
		args = append(args, cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		var n Note
		err := rows.Scan(&n.ID, &n.Text, &n.Summary, &n.UserID, &n.UserName, &n.UserPic,
			&n.Lat, &n.Lng, &n.CreatedAt, &n.LikeCount,
			&n.ImageBase64, &n.ImageWidth, &n.ImageHeight)
		if err != nil {
			return Page{}, fmt.Errorf("failed to scan note: %w", err)
		}
		page.Notes = append(page.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("failed to iterate notes: %w", err)
	}

	if len(page.Notes) > 0 {
		last := page.Notes[len(page.Notes)-1]
		page.NextCursor = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	return page, nil
}

// UpsertNote inserts or replaces a note record. Used by the seeder.
func (r *NoteRepository) UpsertNote(ctx context.Context, note Note) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notes (id, text, summary, user_id, user_name, user_pic,
		                   lat, lng, created_at, like_count,
		                   image_base64, image_width, image_height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			summary = excluded.summary,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			user_pic = excluded.user_pic,
			lat = excluded.lat,
			lng = excluded.lng,
			created_at = excluded.created_at,
			like_count = excluded.like_count,
			image_base64 = excluded.image_base64,
			image_width = excluded.image_width,
			image_height = excluded.image_height`,
		note.ID, note.Text, note.Summary, note.UserID, note.UserName, note.UserPic,
		note.Lat, note.Lng, note.CreatedAt, note.LikeCount,
		note.ImageBase64, note.ImageWidth, note.ImageHeight)
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}

	return nil
}

// GetNoteCount returns the total number of stored notes.
func (r *NoteRepository) GetNoteCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}

	return count, nil
}
