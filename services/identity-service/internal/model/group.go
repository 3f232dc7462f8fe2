package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Group is an organizational unit users are assigned to. Every account
// created by the onboarding workflows is placed into the configured default
// group.
type Group struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Name      string        `bson:"name"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}
