// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// State is an OAuth2 state token tying a provider callback back to the
// signed-in user who started the flow.
type State struct {
	State     string             `bson:"state"`
	UserID    primitive.ObjectID `bson:"user_id"`
	ReturnURL string             `bson:"return_url,omitempty"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB. Indexes (unique state and
// a TTL on expires_at) are created by the indexes package.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Save stores a state token for userID.
func (s *Store) Save(ctx context.Context, state string, userID primitive.ObjectID, returnURL string, expiresAt time.Time) error {
	_, err := s.c.InsertOne(ctx, State{
		State:     state,
		UserID:    userID,
		ReturnURL: returnURL,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

// Consume checks that a state token exists and is not expired, deleting it
// so it cannot be replayed. valid is false for unknown or expired tokens.
func (s *Store) Consume(ctx context.Context, state string) (st State, valid bool, err error) {
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// CleanupExpired removes expired state tokens. The TTL index normally does
// this; the sweep covers the monitor's delay.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
