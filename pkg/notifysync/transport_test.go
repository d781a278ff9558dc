package notifysync

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer is a minimal notification stream endpoint: it records the
// register handshake and lets tests push envelopes or kill connections.
type streamServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	srv      *httptest.Server

	mu        sync.Mutex
	conns     []*websocket.Conn
	registers []registerFrame
	tokens    []string
	reject    bool
}

func newStreamServer(t *testing.T) *streamServer {
	s := &streamServer{t: t}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.reject
		s.mu.Unlock()
		if reject {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var reg registerFrame
		if err := conn.ReadJSON(&reg); err != nil {
			conn.Close()
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.registers = append(s.registers, reg)
		s.tokens = append(s.tokens, r.URL.Query().Get("token"))
		s.mu.Unlock()

		// Keep reading so the close gets noticed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *streamServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *streamServer) registerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registers)
}

func (s *streamServer) push(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(s.t, s.conns)
	conn := s.conns[len(s.conns)-1]
	require.NoError(s.t, conn.WriteJSON(envelope{Event: "new_notification", Payload: &ev}))
}

func (s *streamServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

func (s *streamServer) setReject(v bool) {
	s.mu.Lock()
	s.reject = v
	s.mu.Unlock()
}

func testChannel(t *testing.T, srv *streamServer, maxReconnects int) *Channel {
	t.Helper()
	ch := NewChannel(ChannelConfig{
		URL:            srv.url(),
		Token:          "test-token",
		UserID:         "u1",
		MaxReconnects:  maxReconnects,
		ReconnectDelay: 10 * time.Millisecond,
	})
	t.Cleanup(ch.Close)
	return ch
}

func TestChannelConnectRegisterAndReceive(t *testing.T) {
	srv := newStreamServer(t)
	ch := testChannel(t, srv, 5)

	ch.Open()
	ch.Open() // second open is a no-op

	waitFor(t, func() bool { return ch.Status() == StatusConnected })
	require.Equal(t, 1, srv.registerCount())

	srv.mu.Lock()
	assert.Equal(t, registerFrame{Event: "register", UserID: "u1"}, srv.registers[0])
	assert.Equal(t, "test-token", srv.tokens[0])
	srv.mu.Unlock()

	srv.push(makeEvent("a", false, time.Now()))
	select {
	case ev := <-ch.Events():
		assert.Equal(t, "a", ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("pushed event never arrived")
	}
}

func TestChannelReconnectRepeatsHandshake(t *testing.T) {
	srv := newStreamServer(t)
	ch := testChannel(t, srv, 5)
	ch.Open()

	waitFor(t, func() bool { return ch.Status() == StatusConnected })

	// Kill the connection; the channel must come back and register again,
	// since registration does not survive a disconnect.
	srv.dropAll()
	waitFor(t, func() bool { return srv.registerCount() == 2 })
	waitFor(t, func() bool { return ch.Status() == StatusConnected })

	// Events still flow on the new connection.
	srv.push(makeEvent("b", false, time.Now()))
	select {
	case ev := <-ch.Events():
		assert.Equal(t, "b", ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("pushed event never arrived after reconnect")
	}
}

func TestChannelGivesUpAfterBoundedAttempts(t *testing.T) {
	srv := newStreamServer(t)
	srv.setReject(true)
	ch := testChannel(t, srv, 3)
	ch.Open()

	// All attempts fail; the channel settles disconnected and closes its
	// event stream instead of retrying forever.
	waitFor(t, func() bool {
		select {
		case _, ok := <-ch.Events():
			return !ok
		default:
			return false
		}
	})
	assert.Equal(t, StatusDisconnected, ch.Status())
}

func TestChannelCloseStopsReconnecting(t *testing.T) {
	srv := newStreamServer(t)
	ch := testChannel(t, srv, 5)
	ch.Open()
	waitFor(t, func() bool { return ch.Status() == StatusConnected })

	ch.Close()
	waitFor(t, func() bool {
		select {
		case _, ok := <-ch.Events():
			return !ok
		default:
			return false
		}
	})
	assert.Equal(t, StatusDisconnected, ch.Status())
	assert.Equal(t, 1, srv.registerCount(), "no reconnect after explicit close")
}
