package events

import (
	"time"

	"go.uber.org/fx"
)

//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=mocks/mock.go

// Publisher is the typed pub/sub boundary for engagement notifications. It is
// injected wherever cross-component signaling is needed; nothing in the
// service publishes through an ambient global channel.
type Publisher interface {
	PublishMomentViewed(momentID, viewerID, authorID string)
	PublishMomentLiked(momentID, userID, authorID string, liked bool)
	PublishMomentReplied(momentID, userID, authorID, text string)
}

// AuthorHub is the subset of the websocket hub the publisher needs.
type AuthorHub interface {
	BroadcastToUser(userID string, event *Event)
	IsUserConnected(userID string) bool
}

type HubPublisher struct {
	hub AuthorHub
}

var _ Publisher = (*HubPublisher)(nil)

func NewHubPublisher(hub AuthorHub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// PublishMomentViewed notifies the author, unless they viewed their own
// moment or are not connected.
func (p *HubPublisher) PublishMomentViewed(momentID, viewerID, authorID string) {
	if viewerID == authorID || !p.hub.IsUserConnected(authorID) {
		return
	}
	p.hub.BroadcastToUser(authorID, New(TypeMomentViewed, &MomentViewedEvent{
		MomentID: momentID,
		ViewerID: viewerID,
		ViewedAt: time.Now().UTC().Format(time.RFC3339),
	}))
}

func (p *HubPublisher) PublishMomentLiked(momentID, userID, authorID string, liked bool) {
	if userID == authorID || !p.hub.IsUserConnected(authorID) {
		return
	}
	p.hub.BroadcastToUser(authorID, New(TypeMomentLiked, &MomentLikedEvent{
		MomentID: momentID,
		UserID:   userID,
		Liked:    liked,
	}))
}

func (p *HubPublisher) PublishMomentReplied(momentID, userID, authorID, text string) {
	if userID == authorID || !p.hub.IsUserConnected(authorID) {
		return
	}
	p.hub.BroadcastToUser(authorID, New(TypeMomentReplied, &MomentRepliedEvent{
		MomentID: momentID,
		UserID:   userID,
		Text:     text,
	}))
}

var Module = fx.Provide(
	fx.Annotate(
		NewHubPublisher,
		fx.As(new(Publisher)),
	),
)
