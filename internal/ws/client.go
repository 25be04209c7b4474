package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/orgball2608/moments-playback-service/internal/events"
	"github.com/orgball2608/moments-playback-service/internal/ratelimit"
	"github.com/orgball2608/moments-playback-service/pkg/errors"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Gesture is an inbound viewer message. Action "open" starts a playback
// session for an author's group; everything else is forwarded to the open
// session.
type Gesture struct {
	Action   string `json:"action"`
	AuthorID string `json:"author_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Gesture actions.
const (
	ActionOpen       = "open"
	ActionClose      = "close"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionNext       = "next"
	ActionPrev       = "prev"
	ActionReplyOpen  = "reply_open"
	ActionReplyClose = "reply_close"
	ActionReply      = "reply"
	ActionLike       = "like"
)

// Session is an open playback session bound to one connection.
type Session interface {
	Gesture(g Gesture)
	Close()
}

// SessionFactory opens playback sessions; implemented by the viewer manager.
type SessionFactory interface {
	Open(ctx context.Context, viewerID, authorID string, sink EventSink) (Session, error)
}

// EventSink receives outbound events for one connection.
type EventSink interface {
	SendEvent(event *events.Event) error
}

// Client is one viewer connection. It owns at most one playback session at a
// time; opening a new group closes the previous session.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	hub      *Hub
	factory  SessionFactory
	limiter  ratelimit.Limiter
	logger   logger.Logger
	mu       sync.Mutex
	session  Session
	closed   bool
	shutOnce sync.Once
}

var _ EventSink = (*Client)(nil)

func NewClient(conn *websocket.Conn, userID string, hub *Hub, factory SessionFactory, limiter ratelimit.Limiter, log logger.Logger) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
		hub:     hub,
		factory: factory,
		limiter: limiter,
		logger:  log,
	}
}

// Serve registers the client and runs the read/write pumps. Blocks until the
// connection drops.
func (c *Client) Serve(ctx context.Context) {
	c.hub.RegisterClient(c)
	go c.writePump()
	c.readPump(ctx)
}

// SendEvent queues an event for delivery. Drops the event rather than
// blocking a playback timer on a slow consumer.
func (c *Client) SendEvent(event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	defer c.mu.Unlock()
	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("Send buffer full, dropping event", "user_id", c.userID, "type", string(event.Type))
		return nil
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Viewer connection read error", "user_id", c.userID, "error", err)
			}
			return
		}

		var g Gesture
		if err := json.Unmarshal(data, &g); err != nil {
			c.logger.Warn("Malformed gesture, ignoring", "user_id", c.userID, "error", err)
			continue
		}

		if !c.limiter.Allow(c.userID) {
			c.logger.Warn("Gesture rate limited", "user_id", c.userID, "action", g.Action)
			_ = c.SendEvent(events.New(events.TypePlaybackError, &events.ErrorFrame{
				Intent:  g.Action,
				Message: errors.ErrRateLimited.Error(),
			}))
			continue
		}

		c.handleGesture(ctx, g)
	}
}

func (c *Client) handleGesture(ctx context.Context, g Gesture) {
	switch g.Action {
	case ActionOpen:
		c.closeSession()
		session, err := c.factory.Open(ctx, c.userID, g.AuthorID, c)
		if err != nil {
			c.logger.Warn("Failed to open playback session",
				"user_id", c.userID, "author_id", g.AuthorID, "error", err)
			_ = c.SendEvent(events.New(events.TypePlaybackError, &events.ErrorFrame{
				Intent:  ActionOpen,
				Message: err.Error(),
			}))
			return
		}
		c.mu.Lock()
		if c.closed {
			// The hub replaced this connection while the session was being
			// opened. Nothing will ever close it through the client, so
			// tear it down here instead of storing it.
			c.mu.Unlock()
			session.Close()
			return
		}
		c.session = session
		c.mu.Unlock()

	case ActionClose:
		c.closeSession()

	default:
		c.mu.Lock()
		session := c.session
		c.mu.Unlock()
		if session == nil {
			c.logger.Debug("Gesture without open session, ignoring", "user_id", c.userID, "action", g.Action)
			return
		}
		session.Gesture(g)
	}
}

func (c *Client) closeSession() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session != nil {
		session.Close()
	}
}

// shutdown tears the connection down from the hub side. closed is flipped
// before the session is collected so an Open racing with shutdown either
// sees the flag or has its session picked up here.
func (c *Client) shutdown() {
	c.shutOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.closeSession()
		close(c.send)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
