// internal/domain/models/sitesettings.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SiteSettingsKey identifies the single settings document.
const SiteSettingsKey = "event"

// SiteSettings holds event-wide switches that organizers can change at
// runtime. There is exactly one document, keyed by SiteSettingsKey.
type SiteSettings struct {
	ID  primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Key string             `bson:"key" json:"-"`

	RegistrationOpen bool `bson:"registration_open" json:"registration_open"`

	// Audit fields
	UpdatedAt   *time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	UpdatedByID *primitive.ObjectID `bson:"updated_by_id,omitempty" json:"updated_by_id,omitempty"`
}

// DefaultSiteSettings is returned before any organizer has saved settings.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{Key: SiteSettingsKey, RegistrationOpen: true}
}
