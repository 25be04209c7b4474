package player

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/pkg/errors"
)

// State is the playback state of an open viewer session.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Item is one playable entry of a moment group.
type Item struct {
	ID   string
	Kind domain.Kind
	Text string

	// Duration is the known dwell for media items, 0 when it has to be
	// probed or defaulted.
	Duration time.Duration
}

// Hooks are the outbound edges of the player. They are invoked outside the
// player's lock, in the goroutine that caused the transition. Hook failures
// never roll back player state.
type Hooks struct {
	// OnProgress reports the active item's progress fraction in [0, 1].
	OnProgress func(index int, fraction float64)
	// OnItemChange fires whenever a new item becomes active. The generation
	// token guards async duration probes against firing for a stale item.
	OnItemChange func(gen int, index int, item Item)
	// OnView fires at most once per item per session, after the view dwell.
	OnView func(item Item)
	// OnStateChange reports playing/paused flips.
	OnStateChange func(state State)
	// OnExhausted fires exactly once, when navigation passes the last item.
	OnExhausted func()
}

// Options configure a Player.
type Options struct {
	Clock         clockwork.Clock
	Policy        Policy
	ViewDwell     time.Duration
	ProgressEvery time.Duration
	Hooks         Hooks
}

// Player drives one moment group: automatic timed advancement, pause and
// resume without losing progress, manual navigation with clamping, one-shot
// view intents, and stale-probe invalidation.
//
// The zero value is not usable; construct with New and always Close.
type Player struct {
	mu sync.Mutex

	clock         clockwork.Clock
	policy        Policy
	viewDwell     time.Duration
	progressEvery time.Duration
	hooks         Hooks

	items     []Item
	durations []time.Duration
	progress  []float64
	viewed    []bool

	state     State
	cursor    int
	gen       int
	accrued   time.Duration
	resumedAt time.Time
	holdPause bool
	replyOpen bool

	advanceTimer clockwork.Timer
	viewTimer    clockwork.Timer
	stopProgress chan struct{}
	closed       bool
}

// New builds a player for the given items. Items must be non-empty.
func New(items []Item, opts Options) (*Player, error) {
	if len(items) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "player: item list is empty")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 50 * time.Millisecond
	}
	return &Player{
		clock:         opts.Clock,
		policy:        opts.Policy,
		viewDwell:     opts.ViewDwell,
		progressEvery: opts.ProgressEvery,
		hooks:         opts.Hooks,
		items:         items,
		durations:     make([]time.Duration, len(items)),
		progress:      make([]float64, len(items)),
		viewed:        make([]bool, len(items)),
		state:         StateIdle,
		stopProgress:  make(chan struct{}),
	}, nil
}

// Start begins playback at the given cursor, clamped into range.
func (p *Player) Start(at int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.ErrSessionClosed
	}
	if p.state != StateIdle {
		p.mu.Unlock()
		return errors.New("player: already started")
	}
	if at < 0 {
		at = 0
	}
	if at >= len(p.items) {
		at = len(p.items) - 1
	}
	p.state = StatePlaying
	after := p.startItemLocked(at)
	p.mu.Unlock()

	go p.progressLoop()
	runAll(after)
	return nil
}

// Pause freezes the active item's progress. Wall-clock time spent paused does
// not count against the dwell budget.
func (p *Player) Pause() {
	p.mu.Lock()
	p.holdPause = true
	after := p.recomputePauseLocked()
	p.mu.Unlock()
	runAll(after)
}

// Resume continues playback from the frozen progress fraction.
func (p *Player) Resume() {
	p.mu.Lock()
	p.holdPause = false
	after := p.recomputePauseLocked()
	p.mu.Unlock()
	runAll(after)
}

// SetReplyOpen pauses auto-advance while the reply input is open.
func (p *Player) SetReplyOpen(open bool) {
	p.mu.Lock()
	p.replyOpen = open
	after := p.recomputePauseLocked()
	p.mu.Unlock()
	runAll(after)
}

// Next jumps to the following item. Past the last item the group is
// exhausted.
func (p *Player) Next() {
	p.mu.Lock()
	if p.closed || p.state == StateIdle || p.state == StateExhausted {
		p.mu.Unlock()
		return
	}
	p.progress[p.cursor] = p.fractionLocked(p.clock.Now())
	var after []func()
	if p.cursor+1 >= len(p.items) {
		after = p.exhaustLocked()
	} else {
		after = p.manualJumpLocked(p.cursor + 1)
	}
	p.mu.Unlock()
	runAll(after)
}

// Prev jumps to the preceding item. At the first item it is a no-op.
func (p *Player) Prev() {
	p.mu.Lock()
	if p.closed || p.state == StateIdle || p.state == StateExhausted || p.cursor == 0 {
		p.mu.Unlock()
		return
	}
	after := p.manualJumpLocked(p.cursor - 1)
	p.mu.Unlock()
	runAll(after)
}

// ResolveDuration applies an async media duration probe result. Results for a
// generation other than the active one are discarded, so a probe that
// resolves after the viewer moved on can never touch the wrong item.
func (p *Player) ResolveDuration(gen int, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen || d <= 0 {
		return
	}
	if p.state != StatePlaying && p.state != StatePaused {
		return
	}
	item := p.items[p.cursor]
	if item.Kind != domain.KindVideo && item.Kind != domain.KindImage {
		return
	}

	now := p.clock.Now()
	frac := p.fractionLocked(now)
	newD := p.policy.ClampMedia(d)

	// Keep the fraction where it was so progress stays monotonic across the
	// duration swap.
	p.durations[p.cursor] = newD
	p.accrued = time.Duration(frac * float64(newD))
	p.resumedAt = now
	if p.state == StatePlaying {
		p.armAdvanceLocked()
	}
}

// Snapshot returns the current state, cursor and per-item progress.
func (p *Player) Snapshot() (State, int, []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.progress))
	copy(out, p.progress)
	if p.state == StatePlaying || p.state == StatePaused {
		out[p.cursor] = p.fractionLocked(p.clock.Now())
	}
	return p.state, p.cursor, out
}

// Progress returns the active item's progress fraction.
func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateIdle {
		return 0
	}
	return p.fractionLocked(p.clock.Now())
}

// Generation returns the token for the currently active item.
func (p *Player) Generation() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Close cancels every pending timer. Idempotent; the player is unusable
// afterwards.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.stopTimersLocked()
	close(p.stopProgress)
	p.mu.Unlock()
}

// startItemLocked activates items[idx] from scratch: fresh progress, fresh
// dwell, re-armed timers, bumped generation.
func (p *Player) startItemLocked(idx int) []func() {
	p.gen++
	p.cursor = idx
	p.progress[idx] = 0
	p.accrued = 0
	p.resumedAt = p.clock.Now()
	p.durations[idx] = p.policy.Dwell(p.items[idx])
	p.stopTimersLocked()
	if p.state == StatePlaying {
		p.armAdvanceLocked()
	}
	p.armViewLocked()

	gen, item := p.gen, p.items[idx]
	var after []func()
	if p.hooks.OnItemChange != nil {
		after = append(after, func() { p.hooks.OnItemChange(gen, idx, item) })
	}
	return after
}

// manualJumpLocked implements the "any state, manual nav -> Playing(target,
// progress 0)" transition.
func (p *Player) manualJumpLocked(idx int) []func() {
	prev := p.state
	p.state = StatePlaying
	p.holdPause = false
	p.replyOpen = false
	after := p.startItemLocked(idx)
	if prev != StatePlaying && p.hooks.OnStateChange != nil {
		after = append(after, func() { p.hooks.OnStateChange(StatePlaying) })
	}
	return after
}

func (p *Player) exhaustLocked() []func() {
	p.state = StateExhausted
	p.stopTimersLocked()
	var after []func()
	if p.hooks.OnStateChange != nil {
		after = append(after, func() { p.hooks.OnStateChange(StateExhausted) })
	}
	if p.hooks.OnExhausted != nil {
		after = append(after, p.hooks.OnExhausted)
	}
	return after
}

// recomputePauseLocked reconciles the hold and reply-box pause sources with
// the playing/paused state.
func (p *Player) recomputePauseLocked() []func() {
	if p.closed || p.state == StateIdle || p.state == StateExhausted {
		return nil
	}
	now := p.clock.Now()
	wantPause := p.holdPause || p.replyOpen

	switch {
	case wantPause && p.state == StatePlaying:
		p.accrued += now.Sub(p.resumedAt)
		p.state = StatePaused
		if p.advanceTimer != nil {
			p.advanceTimer.Stop()
			p.advanceTimer = nil
		}
	case !wantPause && p.state == StatePaused:
		p.resumedAt = now
		p.state = StatePlaying
		p.armAdvanceLocked()
	default:
		return nil
	}

	if p.hooks.OnStateChange == nil {
		return nil
	}
	st := p.state
	return []func(){func() { p.hooks.OnStateChange(st) }}
}

// armAdvanceLocked schedules the auto-advance for the remaining dwell of the
// active item.
func (p *Player) armAdvanceLocked() {
	if p.advanceTimer != nil {
		p.advanceTimer.Stop()
	}
	remaining := p.durations[p.cursor] - p.accrued
	if remaining < 0 {
		remaining = 0
	}
	gen := p.gen
	p.advanceTimer = p.clock.AfterFunc(remaining, func() {
		p.onAdvanceTimer(gen)
	})
}

func (p *Player) onAdvanceTimer(gen int) {
	p.mu.Lock()
	if p.closed || gen != p.gen || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.progress[p.cursor] = 1
	var after []func()
	if p.hooks.OnProgress != nil {
		idx := p.cursor
		after = append(after, func() { p.hooks.OnProgress(idx, 1) })
	}
	if p.cursor+1 >= len(p.items) {
		after = append(after, p.exhaustLocked()...)
	} else {
		after = append(after, p.startItemLocked(p.cursor+1)...)
	}
	p.mu.Unlock()
	runAll(after)
}

// armViewLocked schedules the one-shot view intent. The view dwell keeps
// counting through pauses: the item is still on screen.
func (p *Player) armViewLocked() {
	if p.viewed[p.cursor] || p.hooks.OnView == nil {
		return
	}
	gen := p.gen
	p.viewTimer = p.clock.AfterFunc(p.viewDwell, func() {
		p.onViewTimer(gen)
	})
}

func (p *Player) onViewTimer(gen int) {
	p.mu.Lock()
	if p.closed || gen != p.gen || p.viewed[p.cursor] {
		p.mu.Unlock()
		return
	}
	p.viewed[p.cursor] = true
	item := p.items[p.cursor]
	p.mu.Unlock()
	p.hooks.OnView(item)
}

func (p *Player) stopTimersLocked() {
	if p.advanceTimer != nil {
		p.advanceTimer.Stop()
		p.advanceTimer = nil
	}
	if p.viewTimer != nil {
		p.viewTimer.Stop()
		p.viewTimer = nil
	}
}

// fractionLocked computes the active item's live progress fraction.
func (p *Player) fractionLocked(now time.Time) float64 {
	d := p.durations[p.cursor]
	if d <= 0 {
		return 0
	}
	elapsed := p.accrued
	if p.state == StatePlaying {
		elapsed += now.Sub(p.resumedAt)
	}
	frac := float64(elapsed) / float64(d)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// progressLoop emits coarse progress frames while playing. Purely for
// consumers rendering progress bars; all state transitions are timer driven.
func (p *Player) progressLoop() {
	ticker := p.clock.NewTicker(p.progressEvery)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopProgress:
			return
		case now := <-ticker.Chan():
			p.mu.Lock()
			if p.state != StatePlaying {
				p.mu.Unlock()
				continue
			}
			idx := p.cursor
			frac := p.fractionLocked(now)
			p.progress[idx] = frac
			hook := p.hooks.OnProgress
			p.mu.Unlock()
			if hook != nil {
				hook(idx, frac)
			}
		}
	}
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
