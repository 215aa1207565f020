package shared

import (
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/domain/models"
)

// ProfileInput is the participant profile as submitted by clients.
type ProfileInput struct {
	Name               string `json:"name" validate:"required,max=100" label:"Name"`
	RegistrationNumber string `json:"registration_number" validate:"max=32" label:"Registration number"`
	YearOfStudy        int    `json:"year_of_study" validate:"omitempty,gte=1,lte=6" label:"Year of study"`
	PhoneNumber        string `json:"phone_number" validate:"omitempty,phone" label:"Phone number"`
	Email              string `json:"email" validate:"omitempty,strictemail,max=254" label:"Email"`
	ResidenceType      string `json:"residence_type" validate:"omitempty,residence" label:"Residence type"`
}

// Normalize canonicalizes every field in place.
func (p *ProfileInput) Normalize() {
	p.Name = normalize.Name(p.Name)
	p.RegistrationNumber = normalize.RegistrationNumber(p.RegistrationNumber)
	p.PhoneNumber = normalize.Phone(p.PhoneNumber)
	p.Email = normalize.Email(p.Email)
	p.ResidenceType = normalize.ResidenceType(p.ResidenceType)
}

// Profile converts the input to the domain type.
func (p ProfileInput) Profile() models.Profile {
	return models.Profile{
		Name:               p.Name,
		RegistrationNumber: p.RegistrationNumber,
		YearOfStudy:        p.YearOfStudy,
		PhoneNumber:        p.PhoneNumber,
		Email:              p.Email,
		ResidenceType:      p.ResidenceType,
	}
}
