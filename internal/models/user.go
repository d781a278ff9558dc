package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles known to the tracker. Trainees see their roadmaps but do not get the
// live notification feed.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleInstructor = "instructor"
	RoleTrainee    = "trainee"
)

// User represents an account in the Roadmap Tracker system.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Username       string             `bson:"username"`
	Email          string             `bson:"email"`
	HashedPassword string             `json:"hashed_password"`
	Role           string             `bson:"role" json:"role"`
	IsVerified     bool               `bson:"is_verified" json:"is_verified"`
	VerifyToken    string             `bson:"verify_token,omitempty" json:"-"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

type PublicUser struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Email    string             `json:"email"`
	Role     string             `json:"role"`
}
