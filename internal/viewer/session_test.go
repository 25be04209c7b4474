package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/internal/events"
	"github.com/orgball2608/moments-playback-service/internal/ws"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)        {}
func (nopLogger) Info(string, ...any)         {}
func (nopLogger) Warn(string, ...any)         {}
func (nopLogger) Error(string, ...any)        {}
func (n nopLogger) With(...any) logger.Logger { return n }

type fakeFeed struct {
	group *domain.MomentGroup
}

func (f *fakeFeed) GroupForViewer(context.Context, string, string) (*domain.MomentGroup, error) {
	return f.group, nil
}
func (f *fakeFeed) GroupsForViewer(context.Context, string) ([]domain.MomentGroup, error) {
	return []domain.MomentGroup{*f.group}, nil
}
func (f *fakeFeed) InvalidateAuthor(context.Context, string) error { return nil }

type fakeSink struct {
	mu     sync.Mutex
	events []*events.Event
}

func (f *fakeSink) SendEvent(e *events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeSink) ofType(t events.Type) []*events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*events.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeViews struct {
	mu       sync.Mutex
	recorded []string
}

func (f *fakeViews) Record(_ context.Context, momentID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, momentID)
	return nil
}
func (f *fakeViews) CountsForMoments(context.Context, []string) (map[string]int, error) {
	return nil, nil
}
func (f *fakeViews) SeenSetForViewer(context.Context, []string, string) (map[string]bool, error) {
	return nil, nil
}

type fakeReactions struct {
	mu      sync.Mutex
	toggled []string
}

func (f *fakeReactions) Toggle(_ context.Context, momentID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, momentID)
	return true, nil
}
func (f *fakeReactions) CountsForMoments(context.Context, []string) (map[string]int, error) {
	return nil, nil
}
func (f *fakeReactions) LikedSetForViewer(context.Context, []string, string) (map[string]bool, error) {
	return nil, nil
}

type fakeReplies struct {
	err error

	mu      sync.Mutex
	created []domain.Reply
}

func (f *fakeReplies) Create(_ context.Context, r domain.Reply) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, r)
	return "r1", nil
}
func (f *fakeReplies) CountsForMoments(context.Context, []string) (map[string]int, error) {
	return nil, nil
}

type fakeResolver struct {
	duration time.Duration
	err      error
}

func (f *fakeResolver) ResolveURL(_ context.Context, key string) (string, error) {
	return "https://cdn/" + key, nil
}
func (f *fakeResolver) ProbeDuration(context.Context, string) (time.Duration, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.duration, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	viewed  int
	liked   int
	replied int
}

func (f *fakePublisher) PublishMomentViewed(string, string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewed++
}
func (f *fakePublisher) PublishMomentLiked(string, string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liked++
}
func (f *fakePublisher) PublishMomentReplied(string, string, string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replied++
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Playback.TickMs = 50
	cfg.Playback.DefaultDwellMs = 7000
	cfg.Playback.TextPerWordMs = 350
	cfg.Playback.TextMinMs = 3000
	cfg.Playback.TextMaxMs = 15000
	cfg.Playback.MediaMaxMs = 30000
	cfg.Playback.ViewDwellMs = 1000
	cfg.Playback.ProbeTimeoutMs = 3000
	cfg.Limits.IntentWorkers = 4
	return cfg
}

type fixture struct {
	manager   *Manager
	clock     *clockwork.FakeClock
	sink      *fakeSink
	views     *fakeViews
	reactions *fakeReactions
	replies   *fakeReplies
	publisher *fakePublisher
}

func newFixture(t *testing.T, group *domain.MomentGroup, resolver *fakeResolver) *fixture {
	t.Helper()
	pool, err := ants.NewPool(4)
	if err != nil {
		t.Fatalf("ants pool: %v", err)
	}
	t.Cleanup(pool.Release)

	if resolver == nil {
		resolver = &fakeResolver{err: errors.New("no metadata")}
	}

	f := &fixture{
		clock:     clockwork.NewFakeClock(),
		sink:      &fakeSink{},
		views:     &fakeViews{},
		reactions: &fakeReactions{},
		replies:   &fakeReplies{},
		publisher: &fakePublisher{},
	}
	f.manager = &Manager{
		feed:         &fakeFeed{group: group},
		media:        resolver,
		reactionRepo: f.reactions,
		replyRepo:    f.replies,
		viewRepo:     f.views,
		publisher:    f.publisher,
		logger:       nopLogger{},
		config:       testConfig(),
		pool:         pool,
		clock:        f.clock,
	}
	return f
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func textGroup() *domain.MomentGroup {
	g := &domain.MomentGroup{
		AuthorID: "alice",
		Moments: []domain.Moment{
			{ID: "m1", Kind: domain.KindText, Text: "", Seen: true},
			{ID: "m2", Kind: domain.KindText, Text: ""},
		},
	}
	g.StartCursor = g.FirstUnseen()
	return g
}

func TestOpenStartsAtFirstUnseen(t *testing.T) {
	f := newFixture(t, textGroup(), nil)

	s, err := f.manager.Open(context.Background(), "bob", "alice", f.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	waitFor(t, func() bool {
		frames := f.sink.ofType(events.TypePlaybackItem)
		if len(frames) == 0 {
			return false
		}
		frame := frames[0].Data.(*events.ItemFrame)
		return frame.Index == 1 && frame.MomentID == "m2"
	}, "expected item frame for first unseen moment")
}

func TestViewIntentRecordedAndPublished(t *testing.T) {
	f := newFixture(t, textGroup(), nil)

	s, err := f.manager.Open(context.Background(), "bob", "alice", f.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	f.clock.Advance(1000 * time.Millisecond)

	waitFor(t, func() bool {
		f.views.mu.Lock()
		defer f.views.mu.Unlock()
		return len(f.views.recorded) == 1 && f.views.recorded[0] == "m2"
	}, "expected view recorded after view dwell")
	waitFor(t, func() bool {
		f.publisher.mu.Lock()
		defer f.publisher.mu.Unlock()
		return f.publisher.viewed == 1
	}, "expected viewed notification")
}

func TestVideoProbeRescalesAdvance(t *testing.T) {
	group := &domain.MomentGroup{
		AuthorID: "alice",
		Moments: []domain.Moment{
			{ID: "v1", Kind: domain.KindVideo, MediaKey: "k1"},
			{ID: "m2", Kind: domain.KindText, Text: ""},
		},
	}
	f := newFixture(t, group, &fakeResolver{duration: 4 * time.Second})

	s, err := f.manager.Open(context.Background(), "bob", "alice", f.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	sess := s.(*session)
	waitFor(t, func() bool {
		_, _, progress := sess.player.Snapshot()
		return progress != nil
	}, "player not started")

	// The probe runs on the pool in real time; give it time to land before
	// moving the fake clock. At the probed 4s the item must advance, well
	// before the 7s default dwell.
	time.Sleep(50 * time.Millisecond)
	f.clock.Advance(4 * time.Second)

	waitFor(t, func() bool {
		_, cursor, _ := sess.player.Snapshot()
		return cursor == 1
	}, "expected advance at probed duration, not default dwell")
}

func TestLikeGestureTogglesAndPublishes(t *testing.T) {
	f := newFixture(t, textGroup(), nil)

	s, err := f.manager.Open(context.Background(), "bob", "alice", f.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Gesture(ws.Gesture{Action: ws.ActionLike})

	waitFor(t, func() bool {
		f.reactions.mu.Lock()
		defer f.reactions.mu.Unlock()
		return len(f.reactions.toggled) == 1 && f.reactions.toggled[0] == "m2"
	}, "expected like toggle on active moment")
	waitFor(t, func() bool {
		f.publisher.mu.Lock()
		defer f.publisher.mu.Unlock()
		return f.publisher.liked == 1
	}, "expected liked notification")
}

func TestReplyFailureEmitsErrorFrameWithoutStoppingPlayback(t *testing.T) {
	f := newFixture(t, textGroup(), nil)
	f.replies.err = errors.New("db down")

	s, err := f.manager.Open(context.Background(), "bob", "alice", f.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Gesture(ws.Gesture{Action: ws.ActionReplyOpen})
	s.Gesture(ws.Gesture{Action: ws.ActionReply, Text: "nice"})

	waitFor(t, func() bool {
		return len(f.sink.ofType(events.TypePlaybackError)) == 1
	}, "expected error frame for failed reply")

	sess := s.(*session)
	state, _, _ := sess.player.Snapshot()
	if state.String() != "playing" {
		t.Errorf("playback should continue after intent failure, state=%s", state)
	}
}

func TestReplyGestureCreatesReplyAndClosesBox(t *testing.T) {
	f := newFixture(t, textGroup(), nil)

	s, err := f.manager.Open(context.Background(), "bob", "alice", f.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Gesture(ws.Gesture{Action: ws.ActionReplyOpen})
	s.Gesture(ws.Gesture{Action: ws.ActionReply, Text: "nice"})

	waitFor(t, func() bool {
		f.replies.mu.Lock()
		defer f.replies.mu.Unlock()
		return len(f.replies.created) == 1 && f.replies.created[0].Text == "nice"
	}, "expected reply created")

	sess := s.(*session)
	state, _, _ := sess.player.Snapshot()
	if state.String() != "playing" {
		t.Errorf("reply box should close and playback resume, state=%s", state)
	}
}
