// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMaxTeamSize is the roster capacity including the leader.
const DefaultMaxTeamSize = 4

// Team is a leader plus up to MaxSize-1 members.
// Invariant: 1 + len(MemberIDs) <= MaxSize.
type Team struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	NameCI    string               `bson:"name_ci" json:"-"` // folded, for admin search only
	LeaderID  primitive.ObjectID   `bson:"leader_id" json:"leader_id"`
	MemberIDs []primitive.ObjectID `bson:"member_ids" json:"member_ids"`
	MaxSize   int                  `bson:"max_size" json:"max_size"`
	PaymentID *primitive.ObjectID  `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Locked    bool                 `bson:"locked" json:"locked"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Size is the number of people on the roster, leader included.
func (t *Team) Size() int {
	return 1 + len(t.MemberIDs)
}

// Remaining returns the number of open member slots.
func (t *Team) Remaining() int {
	if r := t.MaxSize - t.Size(); r > 0 {
		return r
	}
	return 0
}

// IsFull reports whether no member can be added.
func (t *Team) IsFull() bool {
	return t.Size() >= t.MaxSize
}

// HasMember reports whether id is the leader or a member of t.
func (t *Team) HasMember(id primitive.ObjectID) bool {
	if t.LeaderID == id {
		return true
	}
	for _, m := range t.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
