package notifysync

import (
	"github.com/sirupsen/logrus"
)

// Identity is the authentication state the gate reacts to.
type Identity struct {
	Authenticated bool
	UserID        string
	Role          string
	Token         string
}

// EligibleRoles is the fixed allow-list of roles that get the live feed.
var EligibleRoles = []string{"admin", "manager", "instructor"}

// GateConfig configures the pipeline a gate builds per eligible identity.
type GateConfig struct {
	// BaseURL is the REST endpoint root, e.g. "http://host".
	BaseURL string
	// StreamURL is the websocket endpoint, e.g. "ws://host/ws/notifications".
	StreamURL string
	// AllowedRoles defaults to EligibleRoles.
	AllowedRoles []string
	// DisplayCap defaults to DefaultDisplayCap.
	DisplayCap int
	// MaxReconnects defaults to DefaultMaxReconnects.
	MaxReconnects int
}

// Gate decides from identity changes whether the notification pipeline runs,
// and owns its whole lifecycle. It is the only component that opens or
// closes the transport.
type Gate struct {
	cfg     GateConfig
	allowed map[string]bool

	// Factories are swappable so tests can run a pipeline against synthetic
	// transports and APIs.
	newAPI       func(id Identity) FeedAPI
	newTransport func(id Identity) Transport

	cur  Identity
	sess *Session
}

func NewGate(cfg GateConfig) *Gate {
	roles := cfg.AllowedRoles
	if len(roles) == 0 {
		roles = EligibleRoles
	}
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	g := &Gate{
		cfg:     cfg,
		allowed: allowed,
	}
	g.newAPI = func(id Identity) FeedAPI {
		return NewClient(cfg.BaseURL, id.Token)
	}
	g.newTransport = func(id Identity) Transport {
		return NewChannel(ChannelConfig{
			URL:           cfg.StreamURL,
			Token:         id.Token,
			UserID:        id.UserID,
			MaxReconnects: cfg.MaxReconnects,
		})
	}
	return g
}

// Update re-evaluates eligibility from the new identity state. Transitions
// to eligible start the pipeline, transitions away stop it and clear all
// state. Repeating the same identity is a no-op, so callers can forward
// every auth change without bookkeeping.
//
// Update is driven by the surrounding auth flow and is not safe for
// concurrent use with itself.
func (g *Gate) Update(id Identity) {
	eligible := id.Authenticated && id.UserID != "" && g.allowed[id.Role]

	switch {
	case eligible && g.sess == nil:
		g.startSession(id)
	case eligible && id.UserID != g.cur.UserID:
		// Different user took over the process; never leak the old feed.
		g.stopSession()
		g.startSession(id)
	case !eligible && g.sess != nil:
		g.stopSession()
	}
	g.cur = id
}

// Session returns the active consumer surface, or nil while ineligible.
func (g *Gate) Session() *Session {
	return g.sess
}

// Close stops any active pipeline.
func (g *Gate) Close() {
	g.Update(Identity{})
}

func (g *Gate) startSession(id Identity) {
	logrus.WithFields(logrus.Fields{
		"userID": id.UserID,
		"role":   id.Role,
	}).Info("Notification pipeline starting")
	g.sess = newSession(g.newAPI(id), g.newTransport(id), g.cfg.DisplayCap)
	g.sess.start()
}

func (g *Gate) stopSession() {
	logrus.WithField("userID", g.cur.UserID).Info("Notification pipeline stopping")
	g.sess.stop()
	g.sess = nil
}
