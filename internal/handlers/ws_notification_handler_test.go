package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aqtanberli/roadmap-tracker/internal/hub"
	"github.com/aqtanberli/roadmap-tracker/internal/models"
	jwtutil "github.com/aqtanberli/roadmap-tracker/pkg/jwt"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "stream-test-secret"

func streamTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.NewHub()
	handler := NewStreamHandler(h, testSecret)
	srv := httptest.NewServer(http.HandlerFunc(handler.NotificationStreamHandler))
	t.Cleanup(srv.Close)
	return srv, h
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialStream(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamRejectsMissingToken(t *testing.T) {
	srv, _ := streamTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamRejectsBadToken(t *testing.T) {
	srv, _ := streamTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token=garbage", nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamRegisterAndPush(t *testing.T) {
	srv, h := streamTestServer(t)

	userID := primitive.NewObjectID()
	token, err := jwtutil.GenerateToken(userID.Hex(), "ins@example.com", models.RoleInstructor, testSecret, time.Hour)
	require.NoError(t, err)

	conn := dialStream(t, srv, token)
	require.NoError(t, conn.WriteJSON(map[string]string{"event": "register", "user_id": userID.Hex()}))

	// Registration is async from the client's point of view; wait for the
	// hub to see the connection.
	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount(userID.Hex()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	notif := &models.Notification{
		ID:      primitive.NewObjectID(),
		UserID:  userID,
		Type:    "roadmap_assigned",
		Title:   "New roadmap",
		Message: "You were assigned the onboarding roadmap",
	}
	h.Publish(notif)

	var env hub.Envelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, hub.EventNewNotification, env.Event)
	require.NotNil(t, env.Payload)
	assert.Equal(t, notif.ID, env.Payload.ID)
}

func TestStreamRejectsMismatchedRegistration(t *testing.T) {
	srv, h := streamTestServer(t)

	userID := primitive.NewObjectID()
	token, err := jwtutil.GenerateToken(userID.Hex(), "ins@example.com", models.RoleInstructor, testSecret, time.Hour)
	require.NoError(t, err)

	conn := dialStream(t, srv, token)
	// Registering as someone else must close the connection.
	other := primitive.NewObjectID()
	require.NoError(t, conn.WriteJSON(map[string]string{"event": "register", "user_id": other.Hex()}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, readErr := conn.ReadMessage()
	assert.Error(t, readErr)
	assert.Equal(t, 0, h.ConnectionCount(userID.Hex()))
	assert.Equal(t, 0, h.ConnectionCount(other.Hex()))
}
