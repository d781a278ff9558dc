package handlers

import (
	"net/http"

	"github.com/aqtanberli/roadmap-tracker/internal/hub"
	jwtutil "github.com/aqtanberli/roadmap-tracker/pkg/jwt"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// registerFrame is the handshake a client must send right after connecting
// so the server can route its notifications.
type registerFrame struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

type StreamHandler struct {
	Hub       *hub.Hub
	JWTSecret string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewStreamHandler(h *hub.Hub, jwtSecret string) *StreamHandler {
	return &StreamHandler{Hub: h, JWTSecret: jwtSecret}
}

// NotificationStreamHandler upgrades the connection, waits for the register
// handshake and then keeps the socket open, pushing notifications through
// the hub until the client goes away.
func (h *StreamHandler) NotificationStreamHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		log.WithError(err).Warn("WebSocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	// The first frame must be the register handshake. Clients repeat it on
	// every reconnect since registration dies with the connection.
	var reg registerFrame
	if err := conn.ReadJSON(&reg); err != nil || reg.Event != "register" {
		log.WithField("userID", userID).Warn("WebSocket client skipped register handshake")
		conn.Close()
		return
	}
	if reg.UserID != userID {
		log.WithFields(log.Fields{
			"tokenUserID":    userID,
			"registerUserID": reg.UserID,
		}).Warn("Register handshake user mismatch")
		conn.Close()
		return
	}

	connID := h.Hub.Register(userID, conn)

	defer func() {
		h.Hub.Unregister(userID, connID)
		conn.Close()
		log.WithField("userID", userID).Info("WebSocket disconnected")
	}()

	// Drain the connection. Pushes happen from the hub; inbound frames beyond
	// the handshake are ignored, the read loop only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
