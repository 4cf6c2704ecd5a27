package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var errDupKey = mongo.WriteException{
	WriteErrors: []mongo.WriteError{{Code: 11000}},
}

// fakeTokenColl scripts UpdateOne results and records the delete filters the
// reassignment path issues.
type fakeTokenColl struct {
	updates       []func() (*mongo.UpdateResult, error)
	updateFilters []bson.M
	deleteFilters []bson.M
	deleteResult  *mongo.DeleteResult
}

func (f *fakeTokenColl) UpdateOne(_ context.Context, filter interface{}, _ interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.updateFilters = append(f.updateFilters, filter.(bson.M))
	next := f.updates[0]
	f.updates = f.updates[1:]
	return next()
}

func (f *fakeTokenColl) DeleteMany(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.deleteFilters = append(f.deleteFilters, filter.(bson.M))
	return f.deleteResult, nil
}

func (f *fakeTokenColl) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.deleteFilters = append(f.deleteFilters, filter.(bson.M))
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (f *fakeTokenColl) Find(_ context.Context, _ interface{}, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	return nil, mongo.ErrNilDocument
}

func newTokenStoreWith(coll tokenCollection) *TokenStore {
	return &TokenStore{coll: coll, log: zap.NewNop().Sugar()}
}

func TestUpsertFreshTokenIsNotDedup(t *testing.T) {
	coll := &fakeTokenColl{updates: []func() (*mongo.UpdateResult, error){
		func() (*mongo.UpdateResult, error) { return &mongo.UpdateResult{UpsertedCount: 1}, nil },
	}}
	s := newTokenStoreWith(coll)

	dedup, err := s.Upsert(context.Background(), 1, "tok-a", "android")
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.Empty(t, coll.deleteFilters)
}

func TestUpsertExistingPairIsDedup(t *testing.T) {
	coll := &fakeTokenColl{updates: []func() (*mongo.UpdateResult, error){
		func() (*mongo.UpdateResult, error) { return &mongo.UpdateResult{MatchedCount: 1}, nil },
	}}
	s := newTokenStoreWith(coll)

	dedup, err := s.Upsert(context.Background(), 1, "tok-a", "android")
	require.NoError(t, err)
	assert.True(t, dedup)
}

// A token already bound to a different user (shared device after re-login)
// must move to the new owner, not be silently swallowed as a dedup.
func TestUpsertReassignsTokenHeldByOtherUser(t *testing.T) {
	coll := &fakeTokenColl{
		updates: []func() (*mongo.UpdateResult, error){
			func() (*mongo.UpdateResult, error) { return nil, errDupKey },
			func() (*mongo.UpdateResult, error) { return &mongo.UpdateResult{UpsertedCount: 1}, nil },
		},
		deleteResult: &mongo.DeleteResult{DeletedCount: 1},
	}
	s := newTokenStoreWith(coll)

	dedup, err := s.Upsert(context.Background(), 2, "tok-shared", "android")
	require.NoError(t, err)
	assert.False(t, dedup, "reassignment is a fresh registration, not a dedup")

	// the stale binding purge must spare the new owner's own rows
	require.Len(t, coll.deleteFilters, 1)
	assert.Equal(t, "tok-shared", coll.deleteFilters[0]["token"])
	assert.Equal(t, bson.M{"$ne": int64(2)}, coll.deleteFilters[0]["userId"])

	require.Len(t, coll.updateFilters, 2)
	assert.Equal(t, int64(2), coll.updateFilters[1]["userId"])
}

func TestUpsertDuplicateRaceSameUserIsDedup(t *testing.T) {
	coll := &fakeTokenColl{
		updates: []func() (*mongo.UpdateResult, error){
			func() (*mongo.UpdateResult, error) { return nil, errDupKey },
		},
		deleteResult: &mongo.DeleteResult{DeletedCount: 0},
	}
	s := newTokenStoreWith(coll)

	dedup, err := s.Upsert(context.Background(), 1, "tok-a", "android")
	require.NoError(t, err)
	assert.True(t, dedup)
	require.Len(t, coll.updateFilters, 1, "no retry needed when nothing was reassigned")
}
