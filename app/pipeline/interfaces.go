package pipeline

import "github.com/visiboard/discover/app/feed"

// Surface is the rendering surface the pipeline feeds. Implementations
// receive the final curated sequence; the pipeline never reads back from
// the surface, and after a session is destroyed the surface is never
// called again.
type Surface interface {
	// Append adds items to the end of the displayed sequence.
	Append(items []feed.Item)
	// Replace swaps the whole displayed sequence (full refresh).
	Replace(items []feed.Item)
	// ShowEndOfFeed toggles the end-of-feed marker.
	ShowEndOfFeed(shown bool)
	// SetLoading toggles the pagination footer indicator.
	SetLoading(loading bool)
	// SetRefreshing toggles the initial-load/refresh indicator.
	SetRefreshing(refreshing bool)
	// ShowError surfaces a fetch failure for user-visible retry.
	ShowError(message string)
}
