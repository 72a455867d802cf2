package models

import (
	"greendrake/localboard/internal/utils"
)

// User is the profile projection kept in sync by the identity provider.
// This service only reads it.
type User struct {
	ID      utils.SixID `bson:"_id" json:"id"`
	Handle  string      `bson:"handle" json:"handle"`
	Name    string      `bson:"name" json:"name"`
	Email   string      `bson:"email" json:"-"`
	IsAdmin bool        `bson:"is_admin" json:"-"`
}

// DisplayName prefers the name, then the handle.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return "@" + u.Handle
}
