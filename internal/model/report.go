package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Report is a user-submitted problem report.
type Report struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UID         string        `bson:"uid" json:"uid"`
	DisplayName string        `bson:"displayName" json:"displayName"`
	Email       string        `bson:"email" json:"email"`
	Message     string        `bson:"message" json:"message"`
	SourcePage  string        `bson:"sourcePage" json:"sourcePage"`
	WordCount   int           `bson:"wordCount" json:"wordCount"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}
