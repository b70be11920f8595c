package api

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/visiboard/discover/app/feed"
	"github.com/visiboard/discover/app/imagecache"
	"github.com/visiboard/discover/app/pipeline"
	"github.com/visiboard/discover/app/store"
)

func NewHandler(notes store.NoteStore, noteRepo *store.NoteRepository,
	cache *imagecache.Cache, profile feed.Profile, pageSize int, trimAge time.Duration) *Handler {
	return &Handler{
		notes:    notes,
		noteRepo: noteRepo,
		cache:    cache,
		profile:  profile,
		pageSize: pageSize,
		trimAge:  trimAge,
		sessions: make(map[string]*sessionEntry),
	}
}

// CreateSession opens a feed session, optionally bound to a viewer position,
// and kicks off the initial load.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	var viewer *pipeline.Position
	if req.Lat != nil && req.Lng != nil {
		viewer = &pipeline.Position{Lat: *req.Lat, Lng: *req.Lng}
	}

	id := newSessionID()
	surface := &snapshotSurface{}

	materializer := pipeline.NewMaterializer(h.cache)
	curator := feed.NewCurator(h.profile)
	session := pipeline.NewSession(h.notes, materializer, curator, h.pageSize, viewer)
	session.AttachSurface(surface)
	session.Load(false)

	h.mu.Lock()
	h.sessions[id] = &sessionEntry{session: session, surface: surface, lastSeen: time.Now()}
	h.mu.Unlock()

	slog.Info("Feed session created", "session", id, "positioned", viewer != nil)

	c.JSON(http.StatusCreated, gin.H{
		"session_id": id,
		"feed_url":   "/sessions/" + id + "/feed",
	})
}

// GetFeed returns the current snapshot of the session's curated feed.
func (h *Handler) GetFeed(c *gin.Context) {
	id := c.Param("id")

	entry := h.lookup(id)
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	snap := entry.surface.snapshot()

	items := make([]itemResponse, 0, len(snap.items))
	for _, item := range snap.items {
		items = append(items, h.itemToResponse(id, item))
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"end_of_feed": snap.endOfFeed,
		"loading":     snap.loading,
		"refreshing":  snap.refreshing,
		"error":       snap.lastError,
	})
}

// Refresh restarts the session's feed from the top.
func (h *Handler) Refresh(c *gin.Context) {
	id := c.Param("id")

	entry := h.lookup(id)
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	entry.session.Load(false)
	c.JSON(http.StatusAccepted, gin.H{"refreshing": entry.session.IsLoading()})
}

// LoadMore requests the next page of the session's feed. Past the last page
// this is a no-op and the response says so.
func (h *Handler) LoadMore(c *gin.Context) {
	id := c.Param("id")

	entry := h.lookup(id)
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	entry.session.Load(true)
	c.JSON(http.StatusAccepted, gin.H{
		"loading":     entry.session.IsLoading(),
		"end_of_feed": entry.session.IsLastPage(),
	})
}

// DestroySession tears the session down. A running cycle is cancelled and its
// output discarded; the session ID is gone once this returns.
func (h *Handler) DestroySession(c *gin.Context) {
	id := c.Param("id")

	h.mu.Lock()
	entry, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	entry.session.Destroy()
	slog.Info("Feed session destroyed", "session", id)

	// Mirror trimming on navigation-away: a closed session is the signal that
	// its materialized images may go stale.
	if h.trimAge > 0 {
		go h.cache.Trim(h.trimAge)
	}

	c.Status(http.StatusNoContent)
}

// ExpireIdle destroys sessions that have not been touched for ttl. Returns
// the number of sessions removed.
func (h *Handler) ExpireIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	h.mu.Lock()
	var expired []*sessionEntry
	for id, entry := range h.sessions {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry)
			delete(h.sessions, id)
			slog.Info("Idle feed session expired", "session", id)
		}
	}
	h.mu.Unlock()

	for _, entry := range expired {
		entry.session.Destroy()
	}
	return len(expired)
}

// GetImage serves an item's materialized image from the disk cache.
func (h *Handler) GetImage(c *gin.Context) {
	id := c.Param("id")
	itemID := c.Param("itemId")

	if h.lookup(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	if !h.cache.Contains(itemID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not materialized"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.File(h.cache.Path(itemID))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.noteRepo.GetNoteCount(c.Request.Context()); err == nil {
		health["notes"] = count
	}

	h.mu.Lock()
	health["sessions"] = len(h.sessions)
	h.mu.Unlock()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"page_size": h.pageSize,
	}

	if count, err := h.noteRepo.GetNoteCount(c.Request.Context()); err == nil {
		stats["notes"] = count
	}

	h.mu.Lock()
	sessions := make([]map[string]interface{}, 0, len(h.sessions))
	for id, entry := range h.sessions {
		sessions = append(sessions, map[string]interface{}{
			"id":        id,
			"items":     len(entry.session.Items()),
			"loading":   entry.session.IsLoading(),
			"last_page": entry.session.IsLastPage(),
		})
	}
	h.mu.Unlock()
	stats["sessions"] = sessions

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) lookup(id string) *sessionEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := h.sessions[id]; ok {
		entry.lastSeen = time.Now()
		return entry
	}
	return nil
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for the process
		panic(err)
	}
	return hex.EncodeToString(buf)
}
