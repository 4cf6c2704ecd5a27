package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

type DeviceToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    int64              `bson:"userId" json:"userId"`
	Token     string             `bson:"token" json:"token"`
	Platform  string             `bson:"platform" json:"platform"`
	Enabled   bool               `bson:"enabled" json:"enabled"`
	CreatedAt int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt int64              `bson:"updatedAt" json:"updatedAt"`
}
