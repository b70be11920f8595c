package api

import (
	"sync"
	"time"

	"github.com/visiboard/discover/app/feed"
	"github.com/visiboard/discover/app/imagecache"
	"github.com/visiboard/discover/app/pipeline"
	"github.com/visiboard/discover/app/store"
)

type Handler struct {
	notes    store.NoteStore
	noteRepo *store.NoteRepository
	cache    *imagecache.Cache
	profile  feed.Profile
	pageSize int
	trimAge  time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session  *pipeline.Session
	surface  *snapshotSurface
	lastSeen time.Time
}

// snapshotSurface is the server-side rendering surface: instead of drawing,
// it keeps the latest delivered state for feed snapshot responses. It holds
// its own lock and never calls back into the session.
type snapshotSurface struct {
	mu         sync.Mutex
	items      []feed.Item
	endOfFeed  bool
	loading    bool
	refreshing bool
	lastError  string
}

var _ pipeline.Surface = (*snapshotSurface)(nil)

func (s *snapshotSurface) Append(items []feed.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
}

func (s *snapshotSurface) Replace(items []feed.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]feed.Item, len(items))
	copy(s.items, items)
	s.lastError = ""
}

func (s *snapshotSurface) ShowEndOfFeed(end bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endOfFeed = end
}

func (s *snapshotSurface) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

func (s *snapshotSurface) SetRefreshing(refreshing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = refreshing
}

func (s *snapshotSurface) ShowError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = message
}

func (s *snapshotSurface) snapshot() feedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]feed.Item, len(s.items))
	copy(items, s.items)

	return feedSnapshot{
		items:      items,
		endOfFeed:  s.endOfFeed,
		loading:    s.loading,
		refreshing: s.refreshing,
		lastError:  s.lastError,
	}
}

type feedSnapshot struct {
	items      []feed.Item
	endOfFeed  bool
	loading    bool
	refreshing bool
	lastError  string
}

type createSessionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type itemResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	FillerCategory string  `json:"filler_category,omitempty"`
	Text           string  `json:"text,omitempty"`
	Summary        string  `json:"summary,omitempty"`
	AuthorID       string  `json:"author_id,omitempty"`
	AuthorName     string  `json:"author_name,omitempty"`
	AuthorAvatar   string  `json:"author_avatar,omitempty"`
	Lat            float64 `json:"lat,omitempty"`
	Lng            float64 `json:"lng,omitempty"`
	DistanceKm     float64 `json:"distance_km,omitempty"`
	CreatedAt      int64   `json:"created_at,omitempty"`
	LikeCount      int     `json:"like_count,omitempty"`
	ImageWidth     int     `json:"image_width,omitempty"`
	ImageHeight    int     `json:"image_height,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	ImageData      string  `json:"image_data,omitempty"`
	FullSpan       bool    `json:"full_span"`
}

func (h *Handler) itemToResponse(sessionID string, item feed.Item) itemResponse {
	resp := itemResponse{
		ID:           item.ID,
		Kind:         "content",
		Text:         item.Text,
		Summary:      item.Summary,
		AuthorID:     item.AuthorID,
		AuthorName:   item.AuthorName,
		AuthorAvatar: item.AuthorAvatar,
		Lat:          item.Lat,
		Lng:          item.Lng,
		DistanceKm:   item.Distance,
		CreatedAt:    item.CreatedAt,
		LikeCount:    item.LikeCount,
		ImageWidth:   item.ImageWidth,
		ImageHeight:  item.ImageHeight,
		FullSpan:     item.IsFullSpan(h.profile.WideAspect),
	}

	if item.Kind == feed.KindFiller {
		resp.Kind = "filler"
		resp.FillerCategory = item.FillerCategory.String()
		return resp
	}

	if item.LocalImagePath != "" {
		resp.ImageURL = "/sessions/" + sessionID + "/images/" + item.ID
	} else if len(item.RawImage) > 0 {
		// Materialization fell back to the raw payload, which is already
		// base64; inline it so the client can still render the image.
		resp.ImageData = string(item.RawImage)
	}

	return resp
}
