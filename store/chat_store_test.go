package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"campushub/models"
)

func strPtr(s string) *string { return &s }

func TestProfileSyncUpdateMapsChangedFields(t *testing.T) {
	update := profileSyncUpdate(models.ProfileChanges{
		Name:   strPtr("Jane Doe"),
		Avatar: strPtr("https://cdn/avatar.png"),
	}, 1700000000000)

	require.NotNil(t, update)
	set, ok := update["$set"].(bson.M)
	require.True(t, ok)

	assert.Equal(t, "Jane Doe", set["members.$[m].userName"])
	assert.Equal(t, "https://cdn/avatar.png", set["members.$[m].avatar"])
	assert.Equal(t, int64(1700000000000), set["updatedAt"])

	// untouched fields must not appear in the update
	assert.NotContains(t, set, "members.$[m].email")
	assert.NotContains(t, set, "members.$[m].phone")
}

func TestProfileSyncUpdateAllFields(t *testing.T) {
	update := profileSyncUpdate(models.ProfileChanges{
		Name:   strPtr("Jane"),
		Avatar: strPtr("a.png"),
		Email:  strPtr("jane@campus.edu"),
		Phone:  strPtr("+123456"),
	}, 42)

	set := update["$set"].(bson.M)
	assert.Len(t, set, 5)
	assert.Equal(t, "jane@campus.edu", set["members.$[m].email"])
	assert.Equal(t, "+123456", set["members.$[m].phone"])
}

func TestProfileSyncUpdateEmptyChanges(t *testing.T) {
	assert.Nil(t, profileSyncUpdate(models.ProfileChanges{}, 42))
}

func TestProfileSyncUpdateEmptyStringClearsField(t *testing.T) {
	// an explicit empty string is a value, not an omission
	update := profileSyncUpdate(models.ProfileChanges{Phone: strPtr("")}, 42)
	require.NotNil(t, update)
	set := update["$set"].(bson.M)
	assert.Equal(t, "", set["members.$[m].phone"])
}
