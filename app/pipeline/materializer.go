package pipeline

import (
	"context"
	"log/slog"

	"github.com/visiboard/discover/app/feed"
	"github.com/visiboard/discover/app/imagecache"
	"github.com/visiboard/discover/app/store"
)

// Payloads above this size are skipped rather than decoded, keeping a single
// oversized record from blowing up the worker's memory use.
const maxImagePayloadBytes = 24 << 20

// Materializer converts raw note records into feed items, persisting image
// payloads to the disk cache and stripping them from memory. It runs on the
// session's background worker goroutine and polls its context before each
// item, so a destroyed session stops it between items without leaving
// partial cache files (the cache write itself is atomic).
type Materializer struct {
	cache *imagecache.Cache
}

func NewMaterializer(cache *imagecache.Cache) *Materializer {
	return &Materializer{cache: cache}
}

// Run materializes one fetched batch. A cancelled context abandons the
// remainder of the batch and returns ctx.Err(); a per-item decode or write
// failure keeps that item's raw payload as a direct-render fallback and
// continues.
func (m *Materializer) Run(ctx context.Context, notes []store.Note) ([]feed.Item, error) {
	items := make([]feed.Item, 0, len(notes))

	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := feed.Item{
			ID:           note.ID,
			Text:         note.Text,
			Summary:      note.Summary,
			AuthorID:     note.UserID,
			AuthorName:   note.UserName,
			AuthorAvatar: note.UserPic,
			Lat:          note.Lat,
			Lng:          note.Lng,
			CreatedAt:    note.CreatedAt,
			LikeCount:    note.LikeCount,
			ImageWidth:   note.ImageWidth,
			ImageHeight:  note.ImageHeight,
			Kind:         feed.KindContent,
		}

		if note.ImageBase64 != "" {
			m.materializeImage(ctx, &item, note.ImageBase64)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		items = append(items, item)
	}

	return items, nil
}

func (m *Materializer) materializeImage(ctx context.Context, item *feed.Item, payload string) {
	if len(payload) > maxImagePayloadBytes {
		slog.Warn("Image payload too large, treating as image-less", "note", item.ID, "bytes", len(payload))
		return
	}

	path, err := m.cache.Materialize(ctx, item.ID, []byte(payload))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Best-effort fallback: keep the payload so the surface can still
		// render the image directly this cycle.
		slog.Error("Failed to materialize image", "note", item.ID, "error", err)
		item.RawImage = []byte(payload)
		return
	}

	item.LocalImagePath = path
}
