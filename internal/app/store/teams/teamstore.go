// internal/app/store/teams/teamstore.go
package teamstore

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("teams")}
}

// Create inserts a team. MemberIDs may already be populated. A second team
// for the same leader returns sentinel.ErrDuplicate.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.Name = strings.TrimSpace(t.Name)
	t.NameCI = text.Fold(t.Name)
	if t.MaxSize <= 0 {
		t.MaxSize = models.DefaultMaxTeamSize
	}
	if t.MemberIDs == nil {
		t.MemberIDs = []primitive.ObjectID{}
	}
	if t.Size() > t.MaxSize {
		return models.Team{}, sentinel.ErrInvalidState
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Team{}, sentinel.ErrDuplicate
		}
		return models.Team{}, err
	}
	return t, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Team, error) {
	var t models.Team
	if err := s.c.FindOne(ctx, filter).Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByID loads a team.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Team, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByLeader loads the team led by leaderID.
func (s *Store) GetByLeader(ctx context.Context, leaderID primitive.ObjectID) (*models.Team, error) {
	return s.findOne(ctx, bson.M{"leader_id": leaderID})
}

// AddMember appends userID to the roster only if a slot is free and the
// user is not already listed. The capacity check and
// the push are one document update, so two callers racing for the last slot
// cannot both succeed. Returns sentinel.ErrInvalidState when the condition
// fails on an existing team.
func (s *Store) AddMember(ctx context.Context, teamID, userID primitive.ObjectID) (*models.Team, error) {
	filter := bson.M{
		"_id":        teamID,
		"member_ids": bson.M{"$ne": userID},
		"leader_id":  bson.M{"$ne": userID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$member_ids", bson.A{}}}},
			bson.M{"$subtract": bson.A{"$max_size", 1}},
		}},
	}
	update := bson.M{
		"$push": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	var t models.Team
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if err == mongo.ErrNoDocuments {
		if _, gerr := s.GetByID(ctx, teamID); gerr != nil {
			return nil, gerr
		}
		return nil, sentinel.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RemoveMember pulls userID from the roster.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{
		"$pull": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// SetPayment records the team's current payment intent.
func (s *Store) SetPayment(ctx context.Context, teamID, paymentID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{"$set": bson.M{
		"payment_id": paymentID,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SetLocked sets or clears the paid lock flag.
func (s *Store) SetLocked(ctx context.Context, teamID primitive.ObjectID, locked bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{"$set": bson.M{
		"locked":     locked,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes a team document.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// List returns all teams sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Team, error) {
	return s.find(ctx, bson.M{})
}

// ListOpen returns teams that still have a free slot.
func (s *Store) ListOpen(ctx context.Context) ([]models.Team, error) {
	return s.find(ctx, bson.M{
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$member_ids", bson.A{}}}},
			bson.M{"$subtract": bson.A{"$max_size", 1}},
		}},
	})
}

// Count returns the number of teams.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Team, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Team
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
