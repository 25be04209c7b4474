package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/internal/server/response"
	"github.com/orgball2608/moments-playback-service/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks happen at the gateway.
		return true
	},
}

type feedMoment struct {
	ID         string             `json:"id"`
	AuthorID   string             `json:"author_id"`
	Kind       string             `json:"kind"`
	MediaURL   string             `json:"media_url,omitempty"`
	Text       string             `json:"text,omitempty"`
	Style      *domain.TextStyle  `json:"style,omitempty"`
	SpecialDay *domain.SpecialDay `json:"special_day,omitempty"`
	DurationMs int                `json:"duration_ms,omitempty"`
	LikeCount  int                `json:"like_count"`
	ReplyCount int                `json:"reply_count"`
	ViewCount  int                `json:"view_count"`
	Liked      bool               `json:"liked"`
	Seen       bool               `json:"seen"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

type feedGroup struct {
	AuthorID    string       `json:"author_id"`
	Moments     []feedMoment `json:"moments"`
	StartCursor int          `json:"start_cursor"`
	AllSeen     bool         `json:"all_seen"`
}

func toFeedGroup(g domain.MomentGroup) feedGroup {
	out := feedGroup{
		AuthorID:    g.AuthorID,
		Moments:     make([]feedMoment, len(g.Moments)),
		StartCursor: g.StartCursor,
		AllSeen:     g.AllSeen(),
	}
	for i, m := range g.Moments {
		out.Moments[i] = feedMoment{
			ID:         m.ID,
			AuthorID:   m.AuthorID,
			Kind:       string(m.Kind),
			MediaURL:   m.MediaURL,
			Text:       m.Text,
			Style:      m.Style,
			SpecialDay: m.SpecialDay,
			DurationMs: m.AuthoredDurationMs,
			LikeCount:  m.LikeCount,
			ReplyCount: m.ReplyCount,
			ViewCount:  m.ViewCount,
			Liked:      m.ViewerLiked,
			Seen:       m.Seen,
			CreatedAt:  m.CreatedAt,
			ExpiresAt:  m.ExpiresAt,
		}
	}
	return out
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request, viewerID string) {
	groups, err := s.feed.GroupsForViewer(r.Context(), viewerID)
	if err != nil {
		s.logger.Error("Failed to build feed", "viewer_id", viewerID, "error", err)
		_ = response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to build feed")))
		return
	}

	out := make([]feedGroup, len(groups))
	for i, g := range groups {
		out[i] = toFeedGroup(g)
	}
	_ = response.WriteJSON(w, http.StatusOK, response.RequestOK("Feed fetched successfully", out))
}

type createMomentRequest struct {
	Kind       string             `json:"kind" validate:"required,oneof=image video text"`
	MediaKey   string             `json:"media_key" validate:"required_unless=Kind text"`
	Text       string             `json:"text" validate:"required_if=Kind text,max=2000"`
	Style      *domain.TextStyle  `json:"style,omitempty"`
	SpecialDay *domain.SpecialDay `json:"special_day,omitempty"`
	DurationMs int                `json:"duration_ms" validate:"gte=0,lte=60000"`
}

func (s *Server) handleCreateMoment(w http.ResponseWriter, r *http.Request, viewerID string) {
	var req createMomentRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if errors.Is(err, io.EOF) {
		_ = response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("request body cannot be empty")))
		return
	} else if err != nil {
		_ = response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			_ = response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
			return
		}
		_ = response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return
	}

	id, err := s.momentRepo.Create(r.Context(), domain.Moment{
		AuthorID:           viewerID,
		Kind:               domain.Kind(req.Kind),
		MediaKey:           req.MediaKey,
		Text:               req.Text,
		Style:              req.Style,
		SpecialDay:         req.SpecialDay,
		AuthoredDurationMs: req.DurationMs,
	})
	if err != nil {
		s.logger.Error("Failed to create moment", "author_id", viewerID, "error", err)
		_ = response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to create moment")))
		return
	}

	// Cached groups for this author are now stale.
	if err := s.feed.InvalidateAuthor(r.Context(), viewerID); err != nil {
		s.logger.Warn("Failed to invalidate cached groups", "author_id", viewerID, "error", err)
	}

	_ = response.WriteJSON(w, http.StatusCreated, response.RequestOK("Moment created successfully", map[string]string{"id": id}))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, viewerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket connection", "viewer_id", viewerID, "error", err)
		return
	}

	// Serve blocks on the read pump until the connection drops. The request
	// context dies with the handler, so sessions get a background one.
	client := ws.NewClient(conn, viewerID, s.hub, s.factory, s.limiter, s.logger)
	client.Serve(context.Background())
}
