package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor identifies the user that triggered a notification.
type Actor struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Name string             `bson:"name" json:"name"`
	Role string             `bson:"role" json:"role"`
}

type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Type       string             `bson:"type" json:"type"`       // e.g. "comment_added", "roadmap_assigned"
	Title      string             `bson:"title" json:"title"`     // Short headline
	Message    string             `bson:"message" json:"message"` // Descriptive content
	Read       bool               `bson:"read" json:"read"`       // True if user viewed it
	Actor      *Actor             `bson:"actor,omitempty" json:"actor,omitempty"`
	SubjectRef string             `bson:"subject_ref,omitempty" json:"subject_ref,omitempty"` // Opaque reference to the item it concerns
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt  time.Time          `bson:"expires_at" json:"expires_at"` // For auto-deletion after 30 days
}

// FeedPage is the initial fetch response: one bounded page of items plus the
// unread total across the whole collection, not just the returned page.
type FeedPage struct {
	Items       []Notification `json:"items"`
	UnreadCount int64          `json:"unread_count"`
}
