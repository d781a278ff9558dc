// Package notifysync keeps a client-side notification feed in sync with the
// server. It merges the initial REST fetch with events pushed over a
// websocket into one deduplicated view, and propagates mark-read actions
// back optimistically.
package notifysync

import "time"

// Actor identifies the user that triggered an event. Opaque to the merge
// logic beyond existence.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Event is one notification as seen by the client. Everything except Read is
// immutable once created.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	Actor      *Actor    `json:"actor,omitempty"`
	SubjectRef string    `json:"subject_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is the initial fetch response: one bounded page of events plus
// the unread total across the user's whole feed.
type Snapshot struct {
	Items       []Event `json:"items"`
	UnreadCount int     `json:"unread_count"`
}
