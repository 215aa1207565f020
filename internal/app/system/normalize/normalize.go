// internal/app/system/normalize/normalize.go
package normalize

import (
	"strings"
	"unicode"

	"github.com/dalemusser/teamreg/internal/app/system/htmlsanitize"
	"github.com/dalemusser/teamreg/internal/domain/models"
)

// Email lowercases and trims an email address. Emails are compared
// case-insensitively everywhere, so this is the stored form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name strips markup, trims, and collapses internal runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(htmlsanitize.PlainText(s)), " ")
}

// RegistrationNumber trims and uppercases a college registration number.
func RegistrationNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Phone keeps digits and a leading plus sign.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResidenceType maps any casing of a known residence type to its canonical
// form. Unknown values are returned trimmed so validation can reject them.
func ResidenceType(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "hosteller":
		return models.ResidenceHosteller
	case "day scholar", "dayscholar":
		return models.ResidenceDayScholar
	}
	return s
}

// Role lowercases and trims a role name.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Profile applies the field normalizers to every profile field.
func Profile(p models.Profile) models.Profile {
	return models.Profile{
		Name:               Name(p.Name),
		RegistrationNumber: RegistrationNumber(p.RegistrationNumber),
		YearOfStudy:        p.YearOfStudy,
		PhoneNumber:        Phone(p.PhoneNumber),
		Email:              Email(p.Email),
		ResidenceType:      ResidenceType(p.ResidenceType),
	}
}
