// internal/domain/models/joinrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Join request states. Everything but pending is terminal.
const (
	JoinPending   = "pending"
	JoinAccepted  = "accepted"
	JoinRejected  = "rejected"
	JoinCancelled = "cancelled"
)

// JoinRequest is a solo participant asking to join a team.
type JoinRequest struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TeamID    primitive.ObjectID  `bson:"team_id" json:"team_id"`
	SoloID    primitive.ObjectID  `bson:"solo_id" json:"solo_id"`
	Status    string              `bson:"status" json:"status"`
	DecidedBy *primitive.ObjectID `bson:"decided_by,omitempty" json:"decided_by,omitempty"`
	DecidedAt *time.Time          `bson:"decided_at,omitempty" json:"decided_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Pending reports whether the request still awaits a decision.
func (j *JoinRequest) Pending() bool {
	return j.Status == JoinPending
}
