package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"campushub/models"
)

// tokenCollection is the slice of *mongo.Collection the registry uses.
type tokenCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// TokenStore maps users to their push-capable device tokens. A token is
// globally unique; re-registering an existing (user, token) pair is an
// upsert, not an error.
type TokenStore struct {
	coll tokenCollection
	log  *zap.SugaredLogger
}

func NewTokenStore(coll *mongo.Collection, log *zap.SugaredLogger) *TokenStore {
	return &TokenStore{coll: coll, log: log}
}

// Upsert registers a device token, re-enabling it if it was disabled. The
// returned dedup flag reports that the (user, token) pair already existed,
// including the case where two registrations race into a duplicate-key
// conflict. A conflict on the global token index means the token currently
// belongs to a different user (shared device after re-login); the stale
// binding is dropped and the token moves to the new owner.
func (s *TokenStore) Upsert(ctx context.Context, userID int64, token, platform string) (dedup bool, err error) {
	ts := time.Now().UnixMilli()
	filter := bson.M{"userId": userID, "token": token}
	update := bson.M{
		"$set":         bson.M{"platform": platform, "enabled": true, "updatedAt": ts},
		"$setOnInsert": bson.M{"createdAt": ts},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		return res.MatchedCount > 0, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}

	del, err := s.coll.DeleteMany(ctx, bson.M{
		"token":  token,
		"userId": bson.M{"$ne": userID},
	})
	if err != nil {
		return false, err
	}
	if del.DeletedCount == 0 {
		// nothing to reassign: the pair itself already exists, two
		// registrations raced on the (userId, token) index
		return true, nil
	}
	s.log.Infow("device token reassigned", "userId", userID, "stale", del.DeletedCount)

	res, err = s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *TokenStore) Remove(ctx context.Context, userID int64, token string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID, "token": token})
	return err
}

// Invalidate drops a token the gateway reported dead, regardless of which
// user it is registered to.
func (s *TokenStore) Invalidate(ctx context.Context, token string) error {
	res, err := s.coll.DeleteMany(ctx, bson.M{"token": token})
	if err != nil {
		return err
	}
	if res.DeletedCount > 0 {
		s.log.Infow("pruned invalid device token", "count", res.DeletedCount)
	}
	return nil
}

// TokensFor returns the user's enabled tokens. No tokens is a normal state.
func (s *TokenStore) TokensFor(ctx context.Context, userID int64) ([]string, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID, "enabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.DeviceToken
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(docs))
	for _, d := range docs {
		tokens = append(tokens, d.Token)
	}
	return tokens, nil
}
