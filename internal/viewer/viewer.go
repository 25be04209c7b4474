package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-playback-service/internal/events"
	"github.com/orgball2608/moments-playback-service/internal/feed"
	"github.com/orgball2608/moments-playback-service/internal/media"
	"github.com/orgball2608/moments-playback-service/internal/player"
	"github.com/orgball2608/moments-playback-service/internal/repositories/reaction"
	"github.com/orgball2608/moments-playback-service/internal/repositories/reply"
	"github.com/orgball2608/moments-playback-service/internal/repositories/view"
	"github.com/orgball2608/moments-playback-service/internal/ws"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const intentTimeout = 5 * time.Second

type Opts struct {
	fx.In

	LC           fx.Lifecycle
	Feed         feed.Builder
	Media        media.Resolver
	ReactionRepo reaction.Repository
	ReplyRepo    reply.Repository
	ViewRepo     view.Repository
	Publisher    events.Publisher
	Logger       logger.Logger
	Config       *config.Config
}

// Manager opens playback sessions for viewer connections. Engagement intents
// (view, like, reply) and media duration probes run on a shared worker pool
// so a slow database or object store never stalls a playback timer.
type Manager struct {
	feed         feed.Builder
	media        media.Resolver
	reactionRepo reaction.Repository
	replyRepo    reply.Repository
	viewRepo     view.Repository
	publisher    events.Publisher
	logger       logger.Logger
	config       *config.Config
	pool         *ants.Pool
	clock        clockwork.Clock
}

var _ ws.SessionFactory = (*Manager)(nil)

func New(opts Opts) (*Manager, error) {
	pool, err := ants.NewPool(opts.Config.Limits.IntentWorkers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create intent worker pool: %w", err)
	}

	m := &Manager{
		feed:         opts.Feed,
		media:        opts.Media,
		reactionRepo: opts.ReactionRepo,
		replyRepo:    opts.ReplyRepo,
		viewRepo:     opts.ViewRepo,
		publisher:    opts.Publisher,
		logger:       opts.Logger,
		config:       opts.Config,
		pool:         pool,
		clock:        clockwork.NewRealClock(),
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.pool.Release()
			return nil
		},
	})

	return m, nil
}

// Open assembles the author's moment group, builds a player over it and
// starts playback at the viewer's first unseen item.
func (m *Manager) Open(ctx context.Context, viewerID, authorID string, sink ws.EventSink) (ws.Session, error) {
	group, err := m.feed.GroupForViewer(ctx, viewerID, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to build moment group: %w", err)
	}

	items := make([]player.Item, len(group.Moments))
	for i, mom := range group.Moments {
		items[i] = player.Item{
			ID:       mom.ID,
			Kind:     mom.Kind,
			Text:     mom.Text,
			Duration: time.Duration(mom.AuthoredDurationMs) * time.Millisecond,
		}
	}

	s := &session{
		manager:  m,
		viewerID: viewerID,
		authorID: authorID,
		group:    group,
		sink:     sink,
		logger: m.logger.With(
			"viewer_id", viewerID,
			"author_id", authorID,
		),
	}

	cfg := m.config.Playback
	p, err := player.New(items, player.Options{
		Clock:         m.clock,
		Policy:        player.PolicyFromConfig(m.config),
		ViewDwell:     time.Duration(cfg.ViewDwellMs) * time.Millisecond,
		ProgressEvery: time.Duration(cfg.TickMs) * time.Millisecond,
		Hooks: player.Hooks{
			OnProgress:    s.onProgress,
			OnItemChange:  s.onItemChange,
			OnView:        s.onView,
			OnStateChange: s.onStateChange,
			OnExhausted:   s.onExhausted,
		},
	})
	if err != nil {
		return nil, err
	}
	s.player = p

	if err := p.Start(group.StartCursor); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// submit runs fn on the worker pool with the intent deadline. Falls back to
// inline execution when the pool is saturated so intents are never lost.
func (m *Manager) submit(name string, fn func(ctx context.Context)) {
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		fn(ctx)
	}
	if err := m.pool.Submit(job); err != nil {
		m.logger.Warn("Intent pool rejected job, running inline", "intent", name, "error", err)
		job()
	}
}
