package viewer

import (
	"context"
	"time"

	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/internal/events"
	"github.com/orgball2608/moments-playback-service/internal/player"
	"github.com/orgball2608/moments-playback-service/internal/ws"
	"github.com/orgball2608/moments-playback-service/pkg/errors"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"github.com/orgball2608/moments-playback-service/pkg/retry"
)

// session is one viewer's playback of one author's moment group. Gestures
// arrive from the connection's read pump; playback frames flow back through
// the sink. All engagement intents are fire-and-forget: a failed write is
// reported as an error frame and never rewinds playback.
type session struct {
	manager  *Manager
	viewerID string
	authorID string
	group    *domain.MomentGroup
	player   *player.Player
	sink     ws.EventSink
	logger   logger.Logger
}

var _ ws.Session = (*session)(nil)

func (s *session) Gesture(g ws.Gesture) {
	switch g.Action {
	case ws.ActionPause:
		s.player.Pause()
	case ws.ActionResume:
		s.player.Resume()
	case ws.ActionNext:
		s.player.Next()
	case ws.ActionPrev:
		s.player.Prev()
	case ws.ActionReplyOpen:
		s.player.SetReplyOpen(true)
	case ws.ActionReplyClose:
		s.player.SetReplyOpen(false)
	case ws.ActionReply:
		s.submitReply(g.Text)
		s.player.SetReplyOpen(false)
	case ws.ActionLike:
		s.submitLike()
	default:
		s.logger.Debug("Unknown gesture action, ignoring", "action", g.Action)
	}
}

func (s *session) Close() {
	s.player.Close()
}

func (s *session) onProgress(index int, fraction float64) {
	_ = s.sink.SendEvent(events.New(events.TypePlaybackProgress, &events.ProgressFrame{
		Index:    index,
		Fraction: fraction,
	}))
}

func (s *session) onItemChange(gen int, index int, item player.Item) {
	_ = s.sink.SendEvent(events.New(events.TypePlaybackItem, &events.ItemFrame{
		Index:    index,
		MomentID: item.ID,
	}))

	// Videos without an authored duration get probed asynchronously; until
	// the probe lands the item plays on the default dwell.
	if item.Kind == domain.KindVideo && item.Duration == 0 {
		s.probeDuration(gen, index)
	}
}

func (s *session) onView(item player.Item) {
	s.manager.submit("view", func(ctx context.Context) {
		err := retry.Do(ctx, s.logger, "record view", func() error {
			return s.manager.viewRepo.Record(ctx, item.ID, s.viewerID)
		}, retry.IntentConfig())
		if err != nil {
			s.logger.Error("Failed to record view", "moment_id", item.ID, "error", err)
			s.sendIntentError("view", item.ID, "failed to record view")
			return
		}
		s.manager.publisher.PublishMomentViewed(item.ID, s.viewerID, s.authorID)
	})
}

func (s *session) onStateChange(state player.State) {
	_ = s.sink.SendEvent(events.New(events.TypePlaybackState, &events.StateFrame{
		State: state.String(),
	}))
}

func (s *session) onExhausted() {
	_ = s.sink.SendEvent(events.New(events.TypePlaybackEnd, &events.StateFrame{
		State: player.StateExhausted.String(),
	}))
}

func (s *session) submitLike() {
	momentID, ok := s.activeMomentID()
	if !ok {
		return
	}
	s.manager.submit("like", func(ctx context.Context) {
		liked, err := s.manager.reactionRepo.Toggle(ctx, momentID, s.viewerID)
		if err != nil {
			s.logger.Error("Failed to toggle like", "moment_id", momentID, "error", err)
			s.sendIntentError(ws.ActionLike, momentID, "failed to toggle like")
			return
		}
		s.manager.publisher.PublishMomentLiked(momentID, s.viewerID, s.authorID, liked)
	})
}

func (s *session) submitReply(text string) {
	if text == "" {
		return
	}
	momentID, ok := s.activeMomentID()
	if !ok {
		return
	}
	s.manager.submit("reply", func(ctx context.Context) {
		_, err := s.manager.replyRepo.Create(ctx, domain.Reply{
			MomentID: momentID,
			AuthorID: s.viewerID,
			Text:     text,
		})
		if err != nil {
			s.logger.Error("Failed to create reply", "moment_id", momentID, "error", err)
			s.sendIntentError(ws.ActionReply, momentID, "failed to send reply")
			return
		}
		s.manager.publisher.PublishMomentReplied(momentID, s.viewerID, s.authorID, text)
	})
}

func (s *session) probeDuration(gen, index int) {
	mom := s.group.Moments[index]
	if mom.MediaKey == "" {
		return
	}
	timeout := time.Duration(s.manager.config.Playback.ProbeTimeoutMs) * time.Millisecond
	s.manager.submit("probe", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		d, err := s.manager.media.ProbeDuration(ctx, mom.MediaKey)
		if err != nil {
			if errors.IsUnknownDuration(err) {
				s.logger.Debug("Duration probe unresolved, keeping default dwell", "moment_id", mom.ID)
			} else {
				s.logger.Warn("Duration probe failed, keeping default dwell",
					"moment_id", mom.ID, "error", err)
			}
			return
		}
		s.player.ResolveDuration(gen, d)
	})
}

func (s *session) activeMomentID() (string, bool) {
	_, cursor, _ := s.player.Snapshot()
	if cursor < 0 || cursor >= len(s.group.Moments) {
		return "", false
	}
	return s.group.Moments[cursor].ID, true
}

func (s *session) sendIntentError(intent, momentID, msg string) {
	_ = s.sink.SendEvent(events.New(events.TypePlaybackError, &events.ErrorFrame{
		Intent:   intent,
		MomentID: momentID,
		Message:  msg,
	}))
}
