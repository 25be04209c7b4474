package feedimpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/internal/feed"
	"github.com/orgball2608/moments-playback-service/internal/media"
	"github.com/orgball2608/moments-playback-service/internal/repositories/moment"
	"github.com/orgball2608/moments-playback-service/internal/repositories/reaction"
	"github.com/orgball2608/moments-playback-service/internal/repositories/reply"
	"github.com/orgball2608/moments-playback-service/internal/repositories/view"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"go.uber.org/fx"
)

const groupCacheKey = "feed:group:%s:%s" // viewerID, authorID

type Opts struct {
	fx.In

	MomentRepo   moment.Repository
	ReactionRepo reaction.Repository
	ReplyRepo    reply.Repository
	ViewRepo     view.Repository
	Media        media.Resolver
	Redis        *redis.Client
	Logger       logger.Logger
	Config       *config.Config
}

type FeedImpl struct {
	MomentRepo   moment.Repository
	ReactionRepo reaction.Repository
	ReplyRepo    reply.Repository
	ViewRepo     view.Repository
	Media        media.Resolver
	Redis        *redis.Client
	Logger       logger.Logger
	CacheTTL     time.Duration
}

func New(opts Opts) *FeedImpl {
	return &FeedImpl{
		MomentRepo:   opts.MomentRepo,
		ReactionRepo: opts.ReactionRepo,
		ReplyRepo:    opts.ReplyRepo,
		ViewRepo:     opts.ViewRepo,
		Media:        opts.Media,
		Redis:        opts.Redis,
		Logger:       opts.Logger,
		CacheTTL:     time.Duration(opts.Config.Playback.FeedCacheTTLSec) * time.Second,
	}
}

var _ feed.Builder = (*FeedImpl)(nil)

func (f *FeedImpl) GroupForViewer(ctx context.Context, viewerID, authorID string) (*domain.MomentGroup, error) {
	key := fmt.Sprintf(groupCacheKey, viewerID, authorID)
	if cached, err := f.Redis.Get(ctx, key).Result(); err == nil {
		var group domain.MomentGroup
		if err := json.Unmarshal([]byte(cached), &group); err == nil {
			return &group, nil
		}
	}

	group, err := f.buildGroup(ctx, viewerID, authorID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(group); err == nil {
		// Hot cache only; counters may lag by at most the TTL.
		f.Redis.Set(ctx, key, data, f.CacheTTL)
	}
	return group, nil
}

func (f *FeedImpl) GroupsForViewer(ctx context.Context, viewerID string) ([]domain.MomentGroup, error) {
	authors, err := f.MomentRepo.ListAuthorsWithActive(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list authors with active moments: %w", err)
	}

	groups := make([]domain.MomentGroup, 0, len(authors))
	for _, authorID := range authors {
		group, err := f.GroupForViewer(ctx, viewerID, authorID)
		if err != nil {
			if errors.Is(err, feed.ErrNoActiveMoments) {
				continue
			}
			f.Logger.Error("Failed to assemble group, skipping author",
				"viewer_id", viewerID, "author_id", authorID, "error", err)
			continue
		}
		groups = append(groups, *group)
	}

	// Unseen groups first; ListAuthorsWithActive already orders by recency.
	sort.SliceStable(groups, func(i, j int) bool {
		return !groups[i].AllSeen() && groups[j].AllSeen()
	})

	return groups, nil
}

func (f *FeedImpl) InvalidateAuthor(ctx context.Context, authorID string) error {
	pattern := fmt.Sprintf("feed:group:*:%s", authorID)
	iter := f.Redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := f.Redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to drop cached group: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached groups: %w", err)
	}
	return nil
}

func (f *FeedImpl) buildGroup(ctx context.Context, viewerID, authorID string) (*domain.MomentGroup, error) {
	moments, err := f.MomentRepo.ListActiveByAuthor(ctx, authorID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list active moments: %w", err)
	}
	if len(moments) == 0 {
		return nil, feed.ErrNoActiveMoments
	}

	ids := make([]string, len(moments))
	for i, m := range moments {
		ids[i] = m.ID
	}

	likeCounts, err := f.ReactionRepo.CountsForMoments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	replyCounts, err := f.ReplyRepo.CountsForMoments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count replies: %w", err)
	}
	viewCounts, err := f.ViewRepo.CountsForMoments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}
	liked, err := f.ReactionRepo.LikedSetForViewer(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked set: %w", err)
	}
	seen, err := f.ViewRepo.SeenSetForViewer(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen set: %w", err)
	}

	for i := range moments {
		m := &moments[i]
		m.LikeCount = likeCounts[m.ID]
		m.ReplyCount = replyCounts[m.ID]
		m.ViewCount = viewCounts[m.ID]
		m.ViewerLiked = liked[m.ID]
		m.Seen = seen[m.ID]

		if m.MediaKey != "" {
			url, err := f.Media.ResolveURL(ctx, m.MediaKey)
			if err != nil {
				// A broken media item is presented without a URL; the
				// player still gives it a sane dwell.
				f.Logger.Warn("Failed to resolve media url", "moment_id", m.ID, "error", err)
				continue
			}
			m.MediaURL = url
		}
	}

	group := &domain.MomentGroup{AuthorID: authorID, Moments: moments}
	group.StartCursor = group.FirstUnseen()
	return group, nil
}
