package hub

import (
	"sync"

	"github.com/aqtanberli/roadmap-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Envelope is the wire frame pushed to connected clients.
type Envelope struct {
	Event   string               `json:"event"`
	Payload *models.Notification `json:"payload,omitempty"`
}

const EventNewNotification = "new_notification"

// Hub tracks live websocket connections per user and fans notifications out
// to them. A user may hold several connections (multiple tabs).
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[string]*websocket.Conn // userID -> connID -> conn
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[string]*websocket.Conn),
	}
}

// Register attaches a connection to a user and returns the connection id
// used to detach it later.
func (h *Hub) Register(userID string, conn *websocket.Conn) string {
	connID := uuid.NewString()

	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[string]*websocket.Conn)
	}
	h.conns[userID][connID] = conn
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"userID": userID,
		"connID": connID,
	}).Info("WebSocket client registered")
	return connID
}

// Unregister detaches a connection. Safe to call more than once.
func (h *Hub) Unregister(userID, connID string) {
	h.mu.Lock()
	if userConns, ok := h.conns[userID]; ok {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(h.conns, userID)
		}
	}
	h.mu.Unlock()
}

// Publish pushes a notification to every live connection of its target user.
// Write failures only log; the read loop of the broken connection will clean
// it up.
func (h *Hub) Publish(notif *models.Notification) {
	envelope := Envelope{Event: EventNewNotification, Payload: notif}
	userID := notif.UserID.Hex()

	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, conn := range h.conns[userID] {
		if err := conn.WriteJSON(envelope); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"userID": userID,
				"connID": connID,
			}).Warn("Failed to push notification")
		}
	}
}

// ConnectionCount reports live connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}
