package notifysync

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Transport is the push side of the pipeline. Events arrive on a typed
// channel so merge logic and tests never touch a socket directly.
type Transport interface {
	// Open starts the connection lifecycle. Calling it again is a no-op.
	Open()
	// Close tears the connection down for good.
	Close()
	// Events delivers pushed events in receipt order. Closed once the
	// transport gives up or is closed.
	Events() <-chan Event
	// Status reports the current connection state.
	Status() Status
}

// DefaultMaxReconnects bounds consecutive failed connection attempts before
// the channel settles in the disconnected state.
const DefaultMaxReconnects = 5

// envelope mirrors the server's websocket frame.
type envelope struct {
	Event   string `json:"event"`
	Payload *Event `json:"payload,omitempty"`
}

// registerFrame is sent right after every successful dial so the server can
// route pushes to this session. Registration dies with the connection, so
// it is repeated on every reconnect.
type registerFrame struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

// ChannelConfig configures a websocket Channel.
type ChannelConfig struct {
	// URL is the stream endpoint, e.g. "ws://host/ws/notifications".
	URL string
	// Token authenticates the connection (query parameter).
	Token string
	// UserID goes into the register handshake.
	UserID string
	// MaxReconnects bounds consecutive failed attempts. Defaults to
	// DefaultMaxReconnects.
	MaxReconnects int
	// ReconnectDelay is the initial backoff between attempts, doubling up
	// to 30s. Defaults to one second.
	ReconnectDelay time.Duration
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Channel maintains a best-effort persistent websocket connection. Transport
// errors are never surfaced as errors, only as status transitions; after the
// reconnect budget is spent the channel stays disconnected and the rest of
// the pipeline keeps working over plain requests.
type Channel struct {
	cfg    ChannelConfig
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	open   sync.Once

	mu     sync.Mutex
	status Status
	conn   *websocket.Conn
}

func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = DefaultMaxReconnects
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:    cfg,
		events: make(chan Event, 16),
		ctx:    ctx,
		cancel: cancel,
		status: StatusDisconnected,
	}
}

func (c *Channel) Open() {
	c.open.Do(func() {
		go c.run()
	})
}

func (c *Channel) Close() {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
}

func (c *Channel) Events() <-chan Event {
	return c.events
}

func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Channel) setStatus(st Status) {
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) run() {
	defer close(c.events)
	defer c.setStatus(StatusDisconnected)

	attempts := 0
	backoff := c.cfg.ReconnectDelay

	for {
		if c.ctx.Err() != nil {
			return
		}

		c.setStatus(StatusConnecting)
		conn, err := c.dial()
		if err != nil {
			logrus.WithError(err).Warn("Notification stream connect failed")
			attempts++
			if attempts >= c.cfg.MaxReconnects {
				logrus.Warn("Notification stream reconnect budget spent, live updates unavailable")
				return
			}
			c.setStatus(StatusReconnecting)
			if !c.sleep(backoff) {
				return
			}
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		// Connected with a fresh registration.
		attempts = 0
		backoff = c.cfg.ReconnectDelay
		c.setConn(conn)
		c.setStatus(StatusConnected)

		c.readLoop(conn)

		conn.Close()
		c.setConn(nil)
		if c.ctx.Err() != nil {
			return
		}

		attempts++
		if attempts >= c.cfg.MaxReconnects {
			logrus.Warn("Notification stream reconnect budget spent, live updates unavailable")
			return
		}
		c.setStatus(StatusReconnecting)
		if !c.sleep(backoff) {
			return
		}
	}
}

// dial connects and performs the register handshake.
func (c *Channel) dial() (*websocket.Conn, error) {
	url := c.cfg.URL
	if c.cfg.Token != "" {
		url += "?token=" + c.cfg.Token
	}
	conn, resp, err := c.cfg.Dialer.DialContext(c.ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(registerFrame{Event: "register", UserID: c.cfg.UserID}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// readLoop pumps frames into the events channel until the connection dies.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if c.ctx.Err() == nil {
				logrus.WithError(err).Info("Notification stream read ended")
			}
			return
		}
		if env.Event != "new_notification" || env.Payload == nil {
			continue
		}
		select {
		case c.events <- *env.Payload:
		case <-c.ctx.Done():
			return
		}
	}
}

// sleep waits unless the channel is closed first.
func (c *Channel) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
