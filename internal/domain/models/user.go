// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a participant or staff account can hold.
const (
	RoleOrganizer = "organizer"
	RoleLeader    = "leader"
	RoleMember    = "member"
	RoleSolo      = "solo"
)

// Residence types accepted on a profile.
const (
	ResidenceHosteller  = "Hosteller"
	ResidenceDayScholar = "Day Scholar"
)

// User is a participant (solo, leader, member) or an organizer.
//
// NOTE:
//   - Team affiliation is a back-reference only. The Team document owns the
//     roster; TeamID must agree with it (solo => nil, leader/member => set).
//   - Lockout and verification state live on the user so a single
//     conditional update can change them.
type User struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	RegistrationNumber string             `bson:"registration_number,omitempty" json:"registration_number,omitempty"`
	YearOfStudy        int                `bson:"year_of_study,omitempty" json:"year_of_study,omitempty"`
	PhoneNumber        string             `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	Email              string             `bson:"email" json:"email"` // lowercase, unique
	ResidenceType      string             `bson:"residence_type,omitempty" json:"residence_type,omitempty"`

	Role   string              `bson:"role" json:"role"` // organizer | leader | member | solo
	TeamID *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`

	PasswordHash string `bson:"password_hash" json:"-"`

	EmailVerified   bool       `bson:"email_verified" json:"email_verified"`
	VerifyToken     string     `bson:"verify_token,omitempty" json:"-"`
	VerifyExpiresAt *time.Time `bson:"verify_expires_at,omitempty" json:"-"`

	FailedLogins int        `bson:"failed_logins" json:"-"`
	LockUntil    *time.Time `bson:"lock_until,omitempty" json:"-"`

	DiscordID string `bson:"discord_id,omitempty" json:"discord_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Profile is the participant-editable part of a User.
type Profile struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
	YearOfStudy        int    `json:"year_of_study"`
	PhoneNumber        string `json:"phone_number"`
	Email              string `json:"email"`
	ResidenceType      string `json:"residence_type"`
}

// Profile returns the profile fields of u.
func (u *User) Profile() Profile {
	return Profile{
		Name:               u.Name,
		RegistrationNumber: u.RegistrationNumber,
		YearOfStudy:        u.YearOfStudy,
		PhoneNumber:        u.PhoneNumber,
		Email:              u.Email,
		ResidenceType:      u.ResidenceType,
	}
}

// ApplyProfile copies profile fields onto u. Email is left untouched; it is
// the login identity and changes only through registration.
func (u *User) ApplyProfile(p Profile) {
	u.Name = p.Name
	u.RegistrationNumber = p.RegistrationNumber
	u.YearOfStudy = p.YearOfStudy
	u.PhoneNumber = p.PhoneNumber
	u.ResidenceType = p.ResidenceType
}

// IsLocked reports whether a login lockout is active at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// OnTeam reports whether the user is affiliated with a team.
func (u *User) OnTeam() bool {
	return u.TeamID != nil && !u.TeamID.IsZero()
}
