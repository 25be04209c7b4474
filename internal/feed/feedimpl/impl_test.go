package feedimpl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/internal/feed"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)      {}
func (nopLogger) Info(string, ...any)       {}
func (nopLogger) Warn(string, ...any)       {}
func (nopLogger) Error(string, ...any)      {}
func (n nopLogger) With(...any) logger.Logger { return n }

type fakeMoments struct {
	byAuthor  map[string][]domain.Moment
	listCalls int
}

func (f *fakeMoments) Create(context.Context, domain.Moment) (string, error) { return "", nil }
func (f *fakeMoments) GetByID(context.Context, string) (*domain.Moment, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeMoments) ListActiveByAuthor(_ context.Context, authorID string, _ time.Time) ([]domain.Moment, error) {
	f.listCalls++
	return f.byAuthor[authorID], nil
}
func (f *fakeMoments) ListAuthorsWithActive(context.Context, time.Time) ([]string, error) {
	authors := make([]string, 0, len(f.byAuthor))
	for a := range f.byAuthor {
		authors = append(authors, a)
	}
	return authors, nil
}
func (f *fakeMoments) SoftDeleteExpired(context.Context, time.Time) (int64, error)  { return 0, nil }
func (f *fakeMoments) PurgeDeletedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeReactions struct {
	counts map[string]int
	liked  map[string]bool
}

func (f *fakeReactions) Toggle(context.Context, string, string) (bool, error) { return false, nil }
func (f *fakeReactions) CountsForMoments(context.Context, []string) (map[string]int, error) {
	return f.counts, nil
}
func (f *fakeReactions) LikedSetForViewer(context.Context, []string, string) (map[string]bool, error) {
	return f.liked, nil
}

type fakeReplies struct {
	counts map[string]int
}

func (f *fakeReplies) Create(context.Context, domain.Reply) (string, error) { return "", nil }
func (f *fakeReplies) CountsForMoments(context.Context, []string) (map[string]int, error) {
	return f.counts, nil
}

type fakeViews struct {
	counts map[string]int
	seen   map[string]bool
}

func (f *fakeViews) Record(context.Context, string, string) error { return nil }
func (f *fakeViews) CountsForMoments(context.Context, []string) (map[string]int, error) {
	return f.counts, nil
}
func (f *fakeViews) SeenSetForViewer(context.Context, []string, string) (map[string]bool, error) {
	return f.seen, nil
}

type fakeResolver struct {
	urls map[string]string
}

func (f *fakeResolver) ResolveURL(_ context.Context, key string) (string, error) {
	url, ok := f.urls[key]
	if !ok {
		return "", errors.New("object missing")
	}
	return url, nil
}
func (f *fakeResolver) ProbeDuration(context.Context, string) (time.Duration, error) {
	return 0, errors.New("not implemented")
}

func newTestFeed(t *testing.T, moments *fakeMoments, reactions *fakeReactions, views *fakeViews, resolver *fakeResolver) *FeedImpl {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if reactions == nil {
		reactions = &fakeReactions{}
	}
	if views == nil {
		views = &fakeViews{}
	}
	if resolver == nil {
		resolver = &fakeResolver{}
	}

	return &FeedImpl{
		MomentRepo:   moments,
		ReactionRepo: reactions,
		ReplyRepo:    &fakeReplies{counts: map[string]int{}},
		ViewRepo:     views,
		Media:        resolver,
		Redis:        client,
		Logger:       nopLogger{},
		CacheTTL:     45 * time.Second,
	}
}

func TestGroupAssemblyCountersAndStartCursor(t *testing.T) {
	moments := &fakeMoments{byAuthor: map[string][]domain.Moment{
		"alice": {
			{ID: "m1", AuthorID: "alice", Kind: domain.KindImage, MediaKey: "k1"},
			{ID: "m2", AuthorID: "alice", Kind: domain.KindText, Text: "hello"},
			{ID: "m3", AuthorID: "alice", Kind: domain.KindVideo, MediaKey: "k3"},
		},
	}}
	reactions := &fakeReactions{
		counts: map[string]int{"m1": 4},
		liked:  map[string]bool{"m1": true},
	}
	views := &fakeViews{
		counts: map[string]int{"m1": 9, "m2": 2},
		seen:   map[string]bool{"m1": true},
	}
	resolver := &fakeResolver{urls: map[string]string{"k1": "https://cdn/k1", "k3": "https://cdn/k3"}}

	f := newTestFeed(t, moments, reactions, views, resolver)

	group, err := f.GroupForViewer(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("GroupForViewer: %v", err)
	}
	if len(group.Moments) != 3 {
		t.Fatalf("expected 3 moments, got %d", len(group.Moments))
	}
	if group.StartCursor != 1 {
		t.Errorf("expected start cursor at first unseen (1), got %d", group.StartCursor)
	}
	m1 := group.Moments[0]
	if m1.LikeCount != 4 || !m1.ViewerLiked || m1.ViewCount != 9 || !m1.Seen {
		t.Errorf("counters not applied to m1: %+v", m1)
	}
	if m1.MediaURL != "https://cdn/k1" {
		t.Errorf("media url not resolved: %q", m1.MediaURL)
	}
	if group.Moments[1].MediaURL != "" {
		t.Errorf("text moment should have no media url")
	}
}

func TestGroupServedFromCacheWithinTTL(t *testing.T) {
	moments := &fakeMoments{byAuthor: map[string][]domain.Moment{
		"alice": {{ID: "m1", AuthorID: "alice", Kind: domain.KindText, Text: "hi"}},
	}}
	f := newTestFeed(t, moments, nil, nil, nil)

	ctx := context.Background()
	if _, err := f.GroupForViewer(ctx, "bob", "alice"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := f.GroupForViewer(ctx, "bob", "alice"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if moments.listCalls != 1 {
		t.Errorf("expected 1 repo hit, got %d", moments.listCalls)
	}
}

func TestInvalidateAuthorDropsCachedGroups(t *testing.T) {
	moments := &fakeMoments{byAuthor: map[string][]domain.Moment{
		"alice": {{ID: "m1", AuthorID: "alice", Kind: domain.KindText, Text: "hi"}},
	}}
	f := newTestFeed(t, moments, nil, nil, nil)

	ctx := context.Background()
	if _, err := f.GroupForViewer(ctx, "bob", "alice"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := f.InvalidateAuthor(ctx, "alice"); err != nil {
		t.Fatalf("InvalidateAuthor: %v", err)
	}
	if _, err := f.GroupForViewer(ctx, "bob", "alice"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if moments.listCalls != 2 {
		t.Errorf("expected rebuild after invalidation, got %d repo hits", moments.listCalls)
	}
}

func TestGroupsForViewerOrdersUnseenFirst(t *testing.T) {
	moments := &fakeMoments{byAuthor: map[string][]domain.Moment{
		"alice": {{ID: "m1", AuthorID: "alice", Kind: domain.KindText, Text: "a"}},
		"carol": {{ID: "m2", AuthorID: "carol", Kind: domain.KindText, Text: "b"}},
	}}
	views := &fakeViews{counts: map[string]int{}, seen: map[string]bool{"m1": true}}
	f := newTestFeed(t, moments, nil, views, nil)

	groups, err := f.GroupsForViewer(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GroupsForViewer: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].AuthorID != "carol" {
		t.Errorf("expected unseen author first, got %q", groups[0].AuthorID)
	}
}

func TestGroupForViewerNoActiveMoments(t *testing.T) {
	f := newTestFeed(t, &fakeMoments{byAuthor: map[string][]domain.Moment{}}, nil, nil, nil)

	_, err := f.GroupForViewer(context.Background(), "bob", "ghost")
	if !errors.Is(err, feed.ErrNoActiveMoments) {
		t.Fatalf("expected ErrNoActiveMoments, got %v", err)
	}
}
