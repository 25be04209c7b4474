package events

import "time"

// Type identifies a real-time event delivered over the viewer socket.
type Type string

const (
	// Playback frames, sent to the session's own connection.
	TypePlaybackProgress Type = "playback.progress"
	TypePlaybackState    Type = "playback.state"
	TypePlaybackItem     Type = "playback.item"
	TypePlaybackEnd      Type = "playback.exhausted"
	TypePlaybackError    Type = "playback.error"

	// Engagement notifications, sent to the moment's author.
	TypeMomentViewed  Type = "moment.viewed"
	TypeMomentLiked   Type = "moment.liked"
	TypeMomentReplied Type = "moment.replied"
)

// Event is the wire envelope for every realtime message.
type Event struct {
	Type      Type        `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

func New(t Type, data interface{}) *Event {
	return &Event{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ProgressFrame reports the active item's progress fraction.
type ProgressFrame struct {
	Index    int     `json:"index"`
	Fraction float64 `json:"fraction"`
}

// StateFrame reports playing/paused/exhausted flips.
type StateFrame struct {
	State string `json:"state"`
}

// ItemFrame announces the newly active item.
type ItemFrame struct {
	Index    int    `json:"index"`
	MomentID string `json:"moment_id"`
}

// ErrorFrame surfaces a failed engagement intent to the viewer. Playback
// state is never rolled back on these.
type ErrorFrame struct {
	Intent   string `json:"intent"`
	MomentID string `json:"moment_id"`
	Message  string `json:"message"`
}

// MomentViewedEvent notifies an author that someone viewed their moment.
type MomentViewedEvent struct {
	MomentID string `json:"moment_id"`
	ViewerID string `json:"viewer_id"`
	ViewedAt string `json:"viewed_at"`
}

// MomentLikedEvent notifies an author about a like toggle.
type MomentLikedEvent struct {
	MomentID string `json:"moment_id"`
	UserID   string `json:"user_id"`
	Liked    bool   `json:"liked"`
}

// MomentRepliedEvent notifies an author about a new reply.
type MomentRepliedEvent struct {
	MomentID string `json:"moment_id"`
	UserID   string `json:"user_id"`
	Text     string `json:"text"`
}
