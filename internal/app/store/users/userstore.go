package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/normalize"
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
	return &Store{c: db.Collection("users")}
}

var errBadRole = errors.New(`role must be "organizer"|"leader"|"member"|"solo"`)

func validRole(r string) bool {
	switch r {
	case models.RoleOrganizer, models.RoleLeader, models.RoleMember, models.RoleSolo:
		return true
	}
	return false
}

// Create inserts a new user after normalizing the email. A zero ID is
// replaced with a fresh one. Returns sentinel.ErrDuplicate when the email
// is taken.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = models.RoleSolo
	}
	if !validRole(u.Role) {
		return models.User{}, errBadRole
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, sentinel.ErrDuplicate
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// ListByIDs returns the users with the given ids, in no particular order.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// ListByRole returns users holding role, sorted by name.
func (s *Store) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	return s.find(ctx, bson.M{"role": role}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
}

// List returns every user, sorted by name.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
}

// CountByRole counts users holding role.
func (s *Store) CountByRole(ctx context.Context, role string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": role})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a user document.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// SetVerifyToken stores a fresh email-verification token.
func (s *Store) SetVerifyToken(ctx context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"verify_token":      token,
		"verify_expires_at": expiresAt,
		"updated_at":        time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ConsumeVerifyToken marks the holder of an unexpired token as verified and
// removes the token in one atomic step, so a token works exactly once.
func (s *Store) ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, sentinel.ErrNotFound
	}
	filter := bson.M{"verify_token": token, "verify_expires_at": bson.M{"$gt": now}}
	update := bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": now},
		"$unset": bson.M{"verify_token": "", "verify_expires_at": ""},
	}
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ClearExpiredVerifyTokens removes tokens that expired before now.
func (s *Store) ClearExpiredVerifyTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"verify_expires_at": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"verify_token": "", "verify_expires_at": ""}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// RecordLoginFailure increments the failure counter and, once it reaches
// threshold, sets lock_until to now+lockFor. A lock that has already expired
// starts a fresh count. The whole change is one pipeline update so
// concurrent failures cannot lose increments.
func (s *Store) RecordLoginFailure(ctx context.Context, id primitive.ObjectID, now time.Time, threshold int, lockFor time.Duration) (*models.User, error) {
	expired := bson.M{"$and": bson.A{
		bson.M{"$ne": bson.A{bson.M{"$ifNull": bson.A{"$lock_until", nil}}, nil}},
		bson.M{"$lte": bson.A{"$lock_until", now}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"failed_logins": bson.M{"$cond": bson.A{
				expired,
				1,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$failed_logins", 0}}, 1}},
			}},
			"lock_until": bson.M{"$cond": bson.A{expired, nil, "$lock_until"}},
		}}},
		{{Key: "$set", Value: bson.M{
			"lock_until": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$failed_logins", threshold}},
				now.Add(lockFor),
				"$lock_until",
			}},
			"updated_at": now,
		}}},
	}
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ResetLoginFailures zeroes the counter and clears any lock.
func (s *Store) ResetLoginFailures(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"failed_logins": 0, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"lock_until": ""},
	})
	return err
}

// SetDiscordID links a Discord account to the user.
func (s *Store) SetDiscordID(ctx context.Context, id primitive.ObjectID, discordID string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"discord_id": discordID,
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

// SetRole changes a user's role without touching team affiliation.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	if !validRole(role) {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"role":       role,
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

func profileSet(p models.Profile) bson.M {
	return bson.M{
		"name":                p.Name,
		"registration_number": p.RegistrationNumber,
		"year_of_study":       p.YearOfStudy,
		"phone_number":        p.PhoneNumber,
		"residence_type":      p.ResidenceType,
	}
}

// UpgradeSolo writes profile fields and sets role=solo, but only for a user
// who is not on a team and is not an organizer.
func (s *Store) UpgradeSolo(ctx context.Context, id primitive.ObjectID, p models.Profile) error {
	set := profileSet(p)
	set["role"] = models.RoleSolo
	set["updated_at"] = time.Now().UTC()
	filter := bson.M{
		"_id":     id,
		"team_id": bson.M{"$exists": false},
		"role":    bson.M{"$ne": models.RoleOrganizer},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.missOrState(ctx, id)
	}
	return nil
}

// AssignTeam sets role and team_id for a user who currently has no team.
// When profile is non-nil its fields are written in the same update.
// Returns sentinel.ErrInvalidState if the user already has a team or is an
// organizer.
func (s *Store) AssignTeam(ctx context.Context, id primitive.ObjectID, role string, teamID primitive.ObjectID, profile *models.Profile) error {
	if role != models.RoleLeader && role != models.RoleMember {
		return errBadRole
	}
	set := bson.M{"role": role, "team_id": teamID, "updated_at": time.Now().UTC()}
	if profile != nil {
		for k, v := range profileSet(*profile) {
			set[k] = v
		}
	}
	filter := bson.M{
		"_id":     id,
		"team_id": bson.M{"$exists": false},
		"role":    bson.M{"$ne": models.RoleOrganizer},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.missOrState(ctx, id)
	}
	return nil
}

// ReleaseToSolo detaches a user from teamID and makes them solo again.
// It is a no-op for a user on a different team.
func (s *Store) ReleaseToSolo(ctx context.Context, id, teamID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "team_id": teamID},
		bson.M{
			"$set":   bson.M{"role": models.RoleSolo, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"team_id": ""},
		})
	return err
}

// Restore writes back the profile, role and team of a snapshot taken before
// a multi-step change. Used to undo partial work.
func (s *Store) Restore(ctx context.Context, snap models.User) error {
	set := profileSet(snap.Profile())
	set["role"] = snap.Role
	set["updated_at"] = time.Now().UTC()
	update := bson.M{"$set": set}
	if snap.TeamID != nil {
		set["team_id"] = *snap.TeamID
	} else {
		update["$unset"] = bson.M{"team_id": ""}
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": snap.ID}, update)
	return err
}

func (s *Store) missOrState(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}
