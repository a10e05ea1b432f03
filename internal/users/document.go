package users

import (
	"strings"

	"phatsurf/internal/db"
	"phatsurf/internal/models"

	"github.com/google/uuid"
)

// ValidID reports whether id has the shape of a generated document id.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// NormalizeEmail is applied on every write and lookup so that addresses
// differing only in case or surrounding space name the same user.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fromDocument(d db.Document) *models.User {
	u := &models.User{
		ID:           d.String(db.IDField),
		Username:     d.String(fieldUsername),
		Email:        d.String(fieldEmail),
		PasswordHash: d.String(fieldPassword),
		Location:     d.String(fieldLocation),
		Fitness:      d.String(fieldFitness),
	}
	if w, ok := d.Float(fieldWeight); ok {
		u.Weight = &w
	}
	return u
}
