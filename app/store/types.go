package store

// Note is a raw content record as delivered by the ordered note store,
// before materialization and curation.
type Note struct {
	ID        string
	Text      string
	Summary   string
	UserID    string
	UserName  string
	UserPic   string
	Lat       float64
	Lng       float64
	CreatedAt int64 // epoch millis
	LikeCount int

	ImageBase64 string
	ImageWidth  int
	ImageHeight int
}

// Cursor identifies the last note of the previously fetched page. The zero
// value means "start from the newest note".
type Cursor struct {
	CreatedAt int64
	ID        string
}

func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt == 0
}

// Page is one fetch result: notes ordered newest first (created_at DESC,
// id DESC as a stable tiebreak) plus the cursor for the next fetch.
type Page struct {
	Notes      []Note
	NextCursor Cursor
}
