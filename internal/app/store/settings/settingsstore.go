// internal/app/store/settings/settingsstore.go
package settingsstore

import (
	"context"
	"time"

	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the site_settings collection, which holds a
// single document keyed by models.SiteSettingsKey.
type Store struct {
	c *mongo.Collection
}

// New creates a new settings store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("site_settings")}
}

// Get returns the event settings, or the defaults if none were saved.
func (s *Store) Get(ctx context.Context) (models.SiteSettings, error) {
	var settings models.SiteSettings
	err := s.c.FindOne(ctx, bson.M{"key": models.SiteSettingsKey}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return models.DefaultSiteSettings(), nil
	}
	if err != nil {
		return models.SiteSettings{}, err
	}
	return settings, nil
}

// SetRegistrationOpen opens or closes registration. actor may be nil when
// the change comes from the CLI.
func (s *Store) SetRegistrationOpen(ctx context.Context, open bool, actor *primitive.ObjectID, now time.Time) error {
	set := bson.M{
		"key":               models.SiteSettingsKey,
		"registration_open": open,
		"updated_at":        now,
	}
	if actor != nil {
		set["updated_by_id"] = *actor
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"key": models.SiteSettingsKey}, update, options.Update().SetUpsert(true))
	return err
}

// Exists reports whether settings have ever been saved.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{"key": models.SiteSettingsKey})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
