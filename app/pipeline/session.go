package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/visiboard/discover/app/feed"
	"github.com/visiboard/discover/app/store"
)

// Position is a best-effort viewer location reading used for distance
// annotations. Absence of a reading never delays the pipeline.
type Position struct {
	Lat float64
	Lng float64
}

// State is the bookkeeping of one feed session. It is owned by the Session
// and mutated only under the session lock, when a fetch starts and when a
// worker's result batch is merged; the background worker itself only ever
// produces an immutable batch.
type State struct {
	IsLoading bool
	// IsRefreshing distinguishes the active cycle's kind while IsLoading is
	// set: refresh (replace) versus continuation (append). The surface shows
	// a different indicator for each.
	IsRefreshing bool
	IsLastPage   bool
	SeenIDs      map[string]struct{}
	Accumulated  []feed.Item
	Cursor       store.Cursor
}

// Session is one feed viewing session: it drives the fetch → materialize →
// curate cycle against the note store and owns the lifecycle of the single
// background worker allowed per session.
//
// Destroy is irreversible: after it returns, no call to the surface will be
// made and any in-flight worker is signalled to stop and forgotten.
type Session struct {
	notes        store.NoteStore
	materializer *Materializer
	curator      *feed.Curator
	pageSize     int
	viewer       *Position

	mu           sync.Mutex
	state        State
	surface      Surface
	destroyed    bool
	cancelWorker context.CancelFunc
}

func NewSession(notes store.NoteStore, materializer *Materializer, curator *feed.Curator,
	pageSize int, viewer *Position) *Session {
	return &Session{
		notes:        notes,
		materializer: materializer,
		curator:      curator,
		pageSize:     pageSize,
		viewer:       viewer,
		state: State{
			SeenIDs: make(map[string]struct{}),
		},
	}
}

// AttachSurface connects a rendering surface and replays the accumulated
// curated sequence, so navigating back to the feed does not refetch.
func (s *Session) AttachSurface(surface Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.surface = surface
	surface.Replace(s.state.Accumulated)
	surface.ShowEndOfFeed(s.state.IsLastPage)
	surface.SetLoading(s.state.IsLoading && !s.state.IsRefreshing)
	surface.SetRefreshing(s.state.IsRefreshing)
}

// DetachSurface disconnects the surface without touching pipeline state
// (transient navigation away). A running cycle keeps going; its result is
// merged into the session and replayed on the next attach.
func (s *Session) DetachSurface() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = nil
}

// Load starts one fetch+materialize+curate cycle. continuation false means
// full refresh: the cursor is reset and the displayed list will be replaced.
// The call is a no-op while a cycle is already running, after the last page
// has been reached (for continuations), or after Destroy.
func (s *Session) Load(continuation bool) {
	s.mu.Lock()

	if s.destroyed || s.state.IsLoading {
		s.mu.Unlock()
		return
	}
	if continuation && s.state.IsLastPage {
		s.mu.Unlock()
		return
	}

	s.state.IsLoading = true
	s.state.IsRefreshing = !continuation
	if !continuation {
		s.state.Cursor = store.Cursor{}
		s.state.IsLastPage = false
		if s.surface != nil {
			s.surface.SetRefreshing(true)
		}
	} else if s.surface != nil {
		s.surface.SetLoading(true)
	}

	cursor := s.state.Cursor
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWorker = cancel
	s.mu.Unlock()

	go s.runCycle(ctx, cancel, cursor, continuation)
}

// Destroy tears the session down: the destroyed flag flips exactly once, a
// running worker is signalled to stop, and the surface reference is dropped.
// Destroy never waits for the worker; correctness relies on the worker's own
// cancellation checkpoints.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.surface = nil
	cancel := s.cancelWorker
	s.cancelWorker = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsLoading
}

func (s *Session) IsLastPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsLastPage
}

// Items returns a copy of the accumulated curated sequence.
func (s *Session) Items() []feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]feed.Item, len(s.state.Accumulated))
	copy(items, s.state.Accumulated)
	return items
}

func (s *Session) runCycle(ctx context.Context, cancel context.CancelFunc, cursor store.Cursor, continuation bool) {
	defer cancel()

	page, err := s.notes.FetchPage(ctx, cursor, s.pageSize)
	if err != nil {
		s.finishWithError(err, continuation)
		return
	}

	if len(page.Notes) == 0 {
		s.finishEmpty(continuation)
		return
	}

	batch, err := s.materializer.Run(ctx, page.Notes)
	if err != nil {
		// Interrupted mid-materialization: clean early exit, the cycle's
		// output is discarded without touching the surface.
		s.abandon()
		return
	}

	if s.viewer != nil {
		feed.AnnotateDistances(batch, s.viewer.Lat, s.viewer.Lng)
	}

	curated := s.curator.Run(batch)

	s.deliver(curated, page.NextCursor, len(page.Notes) < s.pageSize, continuation)
}

func (s *Session) finishWithError(err error, continuation bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	slog.Error("Feed fetch failed", "continuation", continuation, "error", err)

	// Cursor and last-page flag stay untouched so the caller can retry
	// with the same continuation value.
	s.state.IsLoading = false
	s.state.IsRefreshing = false
	s.cancelWorker = nil

	if s.surface != nil {
		s.surface.SetLoading(false)
		s.surface.SetRefreshing(false)
		s.surface.ShowError(err.Error())
	}
}

func (s *Session) finishEmpty(continuation bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.state.IsLastPage = true
	s.state.IsLoading = false
	s.state.IsRefreshing = false
	s.cancelWorker = nil

	if s.surface != nil {
		if !continuation {
			s.surface.Replace(s.state.Accumulated)
			s.surface.SetRefreshing(false)
		} else {
			s.surface.SetLoading(false)
		}
		s.surface.ShowEndOfFeed(true)
	}
}

func (s *Session) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.state.IsLoading = false
	s.state.IsRefreshing = false
	s.cancelWorker = nil
}

// deliver merges one curated batch into the session under the lock. Content
// items already seen this session are dropped; fillers are ephemeral and
// always pass. On refresh the seen set is rebuilt from the fresh batch,
// since the previously displayed list is discarded.
func (s *Session) deliver(curated []feed.Item, nextCursor store.Cursor, shortPage, continuation bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.state.Cursor = nextCursor
	if shortPage {
		s.state.IsLastPage = true
	}

	if !continuation {
		s.state.Accumulated = nil
		s.state.SeenIDs = make(map[string]struct{})
	}

	unique := make([]feed.Item, 0, len(curated))
	for _, item := range curated {
		if item.Kind == feed.KindFiller {
			unique = append(unique, item)
			continue
		}
		if _, seen := s.state.SeenIDs[item.ID]; seen {
			continue
		}
		s.state.SeenIDs[item.ID] = struct{}{}
		unique = append(unique, item)
	}

	s.state.Accumulated = append(s.state.Accumulated, unique...)
	s.state.IsLoading = false
	s.state.IsRefreshing = false
	s.cancelWorker = nil

	if s.surface != nil {
		if continuation {
			s.surface.Append(unique)
			s.surface.SetLoading(false)
		} else {
			s.surface.Replace(s.state.Accumulated)
			s.surface.SetRefreshing(false)
		}
		s.surface.ShowEndOfFeed(s.state.IsLastPage)
	}
}
