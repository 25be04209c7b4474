package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orgball2608/moments-playback-service/pkg/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)        {}
func (nopLogger) Info(string, ...any)         {}
func (nopLogger) Warn(string, ...any)         {}
func (nopLogger) Error(string, ...any)        {}
func (n nopLogger) With(...any) logger.Logger { return n }

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

type stubSession struct {
	mu     sync.Mutex
	closed bool
}

func (s *stubSession) Gesture(Gesture) {}
func (s *stubSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *stubSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// blockingFactory parks Open until released, so a shutdown can be interleaved
// mid-open.
type blockingFactory struct {
	session *stubSession
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFactory) Open(context.Context, string, string, EventSink) (Session, error) {
	close(f.entered)
	<-f.release
	return f.session, nil
}

func TestOpenRacingShutdownClosesSession(t *testing.T) {
	factory := &blockingFactory{
		session: &stubSession{},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	client := NewClient(nil, "bob", NewHub(nopLogger{}), factory, allowAll{}, nopLogger{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.handleGesture(context.Background(), Gesture{Action: ActionOpen, AuthorID: "alice"})
	}()

	// Replacement connection kicks this client out while Open is in flight.
	<-factory.entered
	client.shutdown()
	close(factory.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("open gesture did not return")
	}

	if !factory.session.isClosed() {
		t.Fatal("session opened on a shut-down client must be closed, not stored")
	}
	client.mu.Lock()
	stored := client.session
	client.mu.Unlock()
	if stored != nil {
		t.Fatal("shut-down client must not keep a session reference")
	}
}

func TestShutdownClosesStoredSession(t *testing.T) {
	session := &stubSession{}
	factory := &blockingFactory{
		session: session,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	close(factory.release)
	client := NewClient(nil, "bob", NewHub(nopLogger{}), factory, allowAll{}, nopLogger{})

	client.handleGesture(context.Background(), Gesture{Action: ActionOpen, AuthorID: "alice"})

	if session.isClosed() {
		t.Fatal("session closed prematurely")
	}
	client.shutdown()
	if !session.isClosed() {
		t.Fatal("shutdown must close the stored session")
	}
}
