package feed

// Feed item types

type Kind int

const (
	KindContent Kind = iota
	KindFiller
)

// FillerCategory is the closed set of synthetic layout widgets. Each category
// maps to a fixed normalized placement height; wide categories span both
// columns.
type FillerCategory int

const (
	FillerNone FillerCategory = iota
	FillerLava                // tall, 3:4
	FillerTrace               // square
	FillerStrings             // square
	FillerBubble              // square
	FillerSpinner             // small/squat
	FillerSwitch              // wide, full span
	FillerGravity             // wide, full span
)

// FillerIDPrefix marks synthetic item IDs so they are never mistaken for
// content IDs and never deduplicated.
const FillerIDPrefix = "fidget_"

func (c FillerCategory) String() string {
	switch c {
	case FillerLava:
		return "lava"
	case FillerTrace:
		return "trace"
	case FillerStrings:
		return "strings"
	case FillerBubble:
		return "bubble"
	case FillerSpinner:
		return "spinner"
	case FillerSwitch:
		return "switch"
	case FillerGravity:
		return "gravity"
	default:
		return "none"
	}
}

// Item is one entry of the discovery feed: either real content fetched from
// the note store, or a synthetic filler injected by the curator.
type Item struct {
	ID      string
	Text    string
	Summary string

	AuthorID     string
	AuthorName   string
	AuthorAvatar string

	Lat      float64
	Lng      float64
	Distance float64 // km from viewer, 0 when no position reading

	CreatedAt int64 // epoch millis
	LikeCount int

	ImageWidth  int
	ImageHeight int

	// RawImage holds the encoded payload until materialization persists it
	// to the disk cache; LocalImagePath is set once that happened. At most
	// one of the two is non-empty after a materialization cycle.
	RawImage       []byte
	LocalImagePath string

	Kind           Kind
	FillerCategory FillerCategory
}

func (i Item) IsFiller() bool {
	return i.Kind == KindFiller
}

func (i Item) HasImage() bool {
	return len(i.RawImage) > 0 || i.LocalImagePath != ""
}

// IsFullSpan reports whether the item occupies both layout columns: wide
// filler widgets, and images wider than wideAspect times their height.
func (i Item) IsFullSpan(wideAspect float64) bool {
	if i.Kind == KindFiller {
		return i.FillerCategory == FillerSwitch || i.FillerCategory == FillerGravity
	}
	return i.ImageWidth > 0 && i.ImageHeight > 0 &&
		float64(i.ImageWidth) > float64(i.ImageHeight)*wideAspect
}
