package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an identity record created on first signup for a (provider, providerID)
// pair. Profile fields come from the identity provider and may change on later
// logins; nickname, birthdate and gender are self-reported once at signup.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`

	Provider   string `bson:"provider" json:"-"`
	ProviderID string `bson:"providerID" json:"-"`

	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Name    string `bson:"name,omitempty" json:"name,omitempty"`
	Picture string `bson:"picture,omitempty" json:"picture,omitempty"`

	Nickname  string `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Birthdate string `bson:"birthdate,omitempty" json:"-"`
	Gender    string `bson:"gender,omitempty" json:"-"`

	LastLoginAt time.Time `bson:"lastLoginAt,omitempty" json:"-"`
}

// PublicUser is the user view exposed over the API. It never carries
// provider identifiers or internal fields.
type PublicUser struct {
	ID       string  `json:"id"`
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Picture  *string `json:"picture"`
	Nickname *string `json:"nickname"`
}

// Public returns the externally visible view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID.Hex(),
		Email:    orNil(u.Email),
		Name:     orNil(u.Name),
		Picture:  orNil(u.Picture),
		Nickname: orNil(u.Nickname),
	}
}

func orNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
