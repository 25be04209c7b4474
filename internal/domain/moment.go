package domain

import "time"

// Kind is the content kind of a moment.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindText  Kind = "text"
)

// TextStyle holds display attributes for text moments.
type TextStyle struct {
	Background string `json:"background"`
	Font       string `json:"font"`
	FontSize   int    `json:"font_size"`
}

// SpecialDay is an optional overlay annotation on a moment.
type SpecialDay struct {
	Icon    string `json:"icon"`
	Message string `json:"message"`
}

// Moment is one ephemeral user post. Moments expire 24 hours after creation;
// expiry is enforced server-side by the sweeper, the viewer only ever sees
// active ones.
type Moment struct {
	ID         string
	AuthorID   string
	Kind       Kind
	MediaKey   string
	MediaURL   string
	Text       string
	Style      *TextStyle
	SpecialDay *SpecialDay

	// AuthoredDurationMs is the dwell hint set at upload time, 0 when the
	// author did not provide one.
	AuthoredDurationMs int

	LikeCount   int
	ReplyCount  int
	ViewCount   int
	ViewerLiked bool
	Seen        bool

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Reply is a viewer's reply to a moment.
type Reply struct {
	ID       string
	MomentID string
	AuthorID string
	Text     string

	CreatedAt time.Time
}
