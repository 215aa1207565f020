// internal/app/store/joinrequests/joinrequeststore.go
package joinrequeststore

import (
	"context"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("join_requests")}
}

// Create inserts a pending request. A second pending request for the same
// (team, solo) pair is rejected by a partial unique index and reported as
// sentinel.ErrDuplicate.
func (s *Store) Create(ctx context.Context, jr models.JoinRequest) (models.JoinRequest, error) {
	if jr.ID.IsZero() {
		jr.ID = primitive.NewObjectID()
	}
	jr.Status = models.JoinPending
	now := time.Now().UTC()
	jr.CreatedAt = now
	jr.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, jr); err != nil {
		if wafflemongo.IsDup(err) {
			return models.JoinRequest{}, sentinel.ErrDuplicate
		}
		return models.JoinRequest{}, err
	}
	return jr, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.JoinRequest, error) {
	var jr models.JoinRequest
	if err := s.c.FindOne(ctx, filter).Decode(&jr); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &jr, nil
}

// GetByID loads a request.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.JoinRequest, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindPending returns the pending request for (teamID, soloID).
func (s *Store) FindPending(ctx context.Context, teamID, soloID primitive.ObjectID) (*models.JoinRequest, error) {
	return s.findOne(ctx, bson.M{"team_id": teamID, "solo_id": soloID, "status": models.JoinPending})
}

// Transition moves a request from one status to another. Only the caller
// whose filter still matches wins; everyone else gets
// sentinel.ErrInvalidState.
func (s *Store) Transition(ctx context.Context, id primitive.ObjectID, from, to string, actor *primitive.ObjectID, now time.Time) (*models.JoinRequest, error) {
	set := bson.M{"status": to, "updated_at": now, "decided_at": now}
	if actor != nil {
		set["decided_by"] = *actor
	}
	var jr models.JoinRequest
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&jr)
	if err == mongo.ErrNoDocuments {
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, sentinel.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &jr, nil
}

// ListPendingByTeam returns pending requests for a team, oldest first.
func (s *Store) ListPendingByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.JoinRequest, error) {
	return s.find(ctx, bson.M{"team_id": teamID, "status": models.JoinPending})
}

// ListBySolo returns every request a solo has made, oldest first.
func (s *Store) ListBySolo(ctx context.Context, soloID primitive.ObjectID) ([]models.JoinRequest, error) {
	return s.find(ctx, bson.M{"solo_id": soloID})
}

// CancelPendingBySolo cancels the solo's pending requests other than
// exceptID (which may be the zero id).
func (s *Store) CancelPendingBySolo(ctx context.Context, soloID, exceptID primitive.ObjectID, now time.Time) (int64, error) {
	filter := bson.M{"solo_id": soloID, "status": models.JoinPending}
	if !exceptID.IsZero() {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	return s.cancelMany(ctx, filter, now)
}

// CancelPendingByTeam cancels all pending requests for a team.
func (s *Store) CancelPendingByTeam(ctx context.Context, teamID primitive.ObjectID, now time.Time) (int64, error) {
	return s.cancelMany(ctx, bson.M{"team_id": teamID, "status": models.JoinPending}, now)
}

func (s *Store) cancelMany(ctx context.Context, filter bson.M, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"status":     models.JoinCancelled,
		"decided_at": now,
		"updated_at": now,
	}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountPending returns the number of pending requests.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": models.JoinPending})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.JoinRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.JoinRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
