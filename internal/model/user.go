package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is the authoritative account record. XP only ever grows, except for the
// explicit reset operation.
type User struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	DisplayName   string        `bson:"displayName" json:"displayName"`
	Email         string        `bson:"email" json:"email"`
	PasswordHash  string        `bson:"passwordHash,omitempty" json:"-"`
	Provider      string        `bson:"provider,omitempty" json:"-"`
	ProviderID    string        `bson:"providerId,omitempty" json:"-"`
	Admin         bool          `bson:"admin" json:"admin"`
	Age           int           `bson:"age" json:"age"`
	EmailVerified bool          `bson:"emailVerified" json:"emailVerified"`
	TermsAccepted bool          `bson:"termsAccepted" json:"termsAccepted"`
	XP            int           `bson:"xp" json:"xp"`
	Level         int           `bson:"level" json:"level"`
	AvatarURL     string        `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
	LastLoginAt   time.Time     `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
}
