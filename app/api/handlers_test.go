package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/visiboard/discover/app/feed"
	"github.com/visiboard/discover/app/imagecache"
	"github.com/visiboard/discover/app/store"
)

func newTestServer(t *testing.T, noteCount int) *gin.Engine {
	t.Helper()

	db, err := store.NewConnection(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := store.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo := store.NewNoteRepository(db)
	for i := 0; i < noteCount; i++ {
		note := store.Note{
			ID:        fmt.Sprintf("note-%03d", i),
			Text:      fmt.Sprintf("note body %d", i),
			CreatedAt: int64(1000000 - i),
		}
		if err := repo.UpsertNote(t.Context(), note); err != nil {
			t.Fatalf("Failed to seed note: %v", err)
		}
	}

	cache, err := imagecache.New(t.TempDir(), 1200, 85)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	handler := NewHandler(repo, repo, cache, feed.DefaultProfile(), 5, 0)
	return NewServer(handler)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("Response is not JSON: %v\n%s", err, w.Body.String())
		}
	}
	return w.Code, decoded
}

func createSession(t *testing.T, r *gin.Engine, body string) string {
	t.Helper()

	code, resp := doJSON(t, r, "POST", "/sessions", body)
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 creating session, got %d: %v", code, resp)
	}
	id, _ := resp["session_id"].(string)
	if id == "" {
		t.Fatal("Session ID missing in create response")
	}
	return id
}

// waitForFeed polls the snapshot endpoint until the initial load settled.
func waitForFeed(t *testing.T, r *gin.Engine, id string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		code, resp := doJSON(t, r, "GET", "/sessions/"+id+"/feed", "")
		if code != http.StatusOK {
			t.Fatalf("Expected 200 from feed endpoint, got %d", code)
		}
		loading := resp["loading"] == true || resp["refreshing"] == true
		if !loading {
			if items, ok := resp["items"].([]interface{}); ok && len(items) > 0 {
				return resp
			}
			if resp["end_of_feed"] == true || resp["error"] != "" {
				return resp
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Feed never settled")
	return nil
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestServer(t, 12)

	id := createSession(t, r, "")
	snap := waitForFeed(t, r, id)

	items := snap["items"].([]interface{})
	if len(items) == 0 {
		t.Fatal("Initial load delivered no items")
	}

	first := items[0].(map[string]interface{})
	if first["kind"] != "content" && first["kind"] != "filler" {
		t.Errorf("Unexpected item kind: %v", first["kind"])
	}

	code, _ := doJSON(t, r, "DELETE", "/sessions/"+id, "")
	if code != http.StatusNoContent {
		t.Errorf("Expected 204 destroying session, got %d", code)
	}

	code, _ = doJSON(t, r, "GET", "/sessions/"+id+"/feed", "")
	if code != http.StatusNotFound {
		t.Errorf("Destroyed session should be gone, got %d", code)
	}

	// Destroy is idempotent at the session level but the route forgets the ID.
	code, _ = doJSON(t, r, "DELETE", "/sessions/"+id, "")
	if code != http.StatusNotFound {
		t.Errorf("Second destroy should 404, got %d", code)
	}
}

func TestLoadMore_AccumulatesPages(t *testing.T) {
	r := newTestServer(t, 12)

	id := createSession(t, r, "")
	snap := waitForFeed(t, r, id)
	initial := len(snap["items"].([]interface{}))

	code, _ := doJSON(t, r, "POST", "/sessions/"+id+"/more", "")
	if code != http.StatusAccepted {
		t.Fatalf("Expected 202 from more endpoint, got %d", code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, resp := doJSON(t, r, "GET", "/sessions/"+id+"/feed", "")
		if resp["loading"] != true {
			if got := len(resp["items"].([]interface{})); got > initial {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Load more never grew the feed")
}

func TestRefresh_RestartsFromTop(t *testing.T) {
	r := newTestServer(t, 12)

	id := createSession(t, r, "")
	waitForFeed(t, r, id)

	code, _ := doJSON(t, r, "POST", "/sessions/"+id+"/refresh", "")
	if code != http.StatusAccepted {
		t.Fatalf("Expected 202 from refresh endpoint, got %d", code)
	}

	snap := waitForFeed(t, r, id)
	items := snap["items"].([]interface{})
	if len(items) == 0 {
		t.Fatal("Refresh delivered no items")
	}

	// The page restarts from the top, so the newest note is present and the
	// displayed list holds exactly one page of content again.
	content := 0
	sawNewest := false
	for _, raw := range items {
		item := raw.(map[string]interface{})
		if item["kind"] == "content" {
			content++
			if item["id"] == "note-000" {
				sawNewest = true
			}
		}
	}
	if !sawNewest {
		t.Error("Refresh should include the newest note again")
	}
	if content != 5 {
		t.Errorf("Refresh should replace the list with one page, got %d content items", content)
	}
}

func TestCreateSession_WithViewerPosition(t *testing.T) {
	r := newTestServer(t, 3)

	id := createSession(t, r, `{"lat": 52.52, "lng": 13.405}`)
	snap := waitForFeed(t, r, id)
	if len(snap["items"].([]interface{})) == 0 {
		t.Fatal("Positioned session delivered no items")
	}
}

func TestCreateSession_RejectsMalformedBody(t *testing.T) {
	r := newTestServer(t, 0)

	code, _ := doJSON(t, r, "POST", "/sessions", `{"lat": "not a number"}`)
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", code)
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	r := newTestServer(t, 0)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/sessions/nope/feed"},
		{"POST", "/sessions/nope/refresh"},
		{"POST", "/sessions/nope/more"},
		{"GET", "/sessions/nope/images/item"},
	} {
		code, _ := doJSON(t, r, tc.method, tc.path, "")
		if code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tc.method, tc.path, code)
		}
	}
}

func TestExpireIdle(t *testing.T) {
	db, err := store.NewConnection(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := store.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	repo := store.NewNoteRepository(db)

	cache, err := imagecache.New(t.TempDir(), 1200, 85)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	handler := NewHandler(repo, repo, cache, feed.DefaultProfile(), 5, 0)
	r := NewServer(handler)

	id := createSession(t, r, "")
	waitForFeed(t, r, id)

	// Nothing is idle yet.
	if got := handler.ExpireIdle(time.Hour); got != 0 {
		t.Errorf("Expected no expirations with a generous TTL, got %d", got)
	}

	time.Sleep(5 * time.Millisecond)
	if got := handler.ExpireIdle(time.Millisecond); got != 1 {
		t.Errorf("Expected 1 expiration with a tiny TTL, got %d", got)
	}

	code, _ := doJSON(t, r, "GET", "/sessions/"+id+"/feed", "")
	if code != http.StatusNotFound {
		t.Errorf("Expired session should be gone, got %d", code)
	}
}

func TestGetHealth(t *testing.T) {
	r := newTestServer(t, 4)

	code, resp := doJSON(t, r, "GET", "/health", "")
	if code != http.StatusOK {
		t.Fatalf("Expected 200 from health endpoint, got %d", code)
	}
	if resp["notes"] != float64(4) {
		t.Errorf("Expected 4 notes in health payload, got %v", resp["notes"])
	}
	if resp["sessions"] != float64(0) {
		t.Errorf("Expected 0 sessions in health payload, got %v", resp["sessions"])
	}
}
