package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"campushub/models"
)

// ChatStore owns the chats collection: roster membership, mute state, read
// marks and the denormalized profile copies embedded in every roster.
type ChatStore struct {
	coll *mongo.Collection
	log  *zap.SugaredLogger
}

func NewChatStore(coll *mongo.Collection, log *zap.SugaredLogger) *ChatStore {
	return &ChatStore{coll: coll, log: log}
}

func now() int64 {
	return time.Now().UnixMilli()
}

// CreateGroup creates a group chat. Duplicate userIDs in members are
// collapsed so the roster uniqueness invariant holds from the start.
func (s *ChatStore) CreateGroup(ctx context.Context, createdBy int64, name, avatar string, courseSection int64, members []models.Member) (*models.Chat, error) {
	ts := now()
	seen := make(map[int64]bool, len(members))
	roster := make([]models.Member, 0, len(members))
	for _, m := range members {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		if m.Role == "" {
			m.Role = models.RoleMember
		}
		m.JoinedAt = ts
		roster = append(roster, m)
	}

	chat := &models.Chat{
		ID:            primitive.NewObjectID(),
		Type:          models.ChatTypeGroup,
		Name:          name,
		Avatar:        avatar,
		CourseSection: courseSection,
		CreatedBy:     createdBy,
		UpdatedBy:     createdBy,
		Members:       roster,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	if _, err := s.coll.InsertOne(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// CreatePrivate returns the existing private chat between the two users if
// one exists, creating it otherwise. A private chat has no stored name; the
// caller derives it from the other member's display name.
func (s *ChatStore) CreatePrivate(ctx context.Context, requester, other models.Member) (*models.Chat, bool, error) {
	filter := bson.M{
		"type":           models.ChatTypePrivate,
		"members.userId": bson.M{"$all": bson.A{requester.UserID, other.UserID}},
	}

	var existing models.Chat
	err := s.coll.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return &existing, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	ts := now()
	requester.Role = models.RoleMember
	requester.JoinedAt = ts
	other.Role = models.RoleMember
	other.JoinedAt = ts

	chat := &models.Chat{
		ID:        primitive.NewObjectID(),
		Type:      models.ChatTypePrivate,
		CreatedBy: requester.UserID,
		UpdatedBy: requester.UserID,
		Members:   []models.Member{requester, other},
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	if _, err := s.coll.InsertOne(ctx, chat); err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

func (s *ChatStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// Roster returns the member list of a chat, the input to every fan-out.
func (s *ChatStore) Roster(ctx context.Context, id primitive.ObjectID) ([]models.Member, error) {
	var doc struct {
		Members []models.Member `bson:"members"`
	}
	opts := options.FindOne().SetProjection(bson.M{"members": 1})
	err := s.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Members, nil
}

// MembershipsFor lists every chat the user belongs to, projecting only that
// user's own member element. The transport layer uses the result to
// auto-join rooms on connect; an empty slice is a valid answer.
func (s *ChatStore) MembershipsFor(ctx context.Context, userID int64) ([]models.Membership, error) {
	opts := options.Find().SetProjection(bson.M{
		"_id":     1,
		"members": bson.M{"$elemMatch": bson.M{"userId": userID}},
	})

	cursor, err := s.coll.Find(ctx, bson.M{"members.userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID      primitive.ObjectID `bson:"_id"`
		Members []models.Member    `bson:"members"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	memberships := make([]models.Membership, 0, len(docs))
	for _, d := range docs {
		m := models.Membership{ChatID: d.ID}
		if len(d.Members) > 0 {
			m.Muted = d.Members[0].Muted
		}
		memberships = append(memberships, m)
	}
	return memberships, nil
}

// ListForUser returns the user's chats, most recently updated first.
func (s *ChatStore) ListForUser(ctx context.Context, userID int64) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"members.userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []models.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// AddMembers pushes each member that is not already on the roster. Members
// already present are skipped silently, preserving roster uniqueness.
func (s *ChatStore) AddMembers(ctx context.Context, chatID primitive.ObjectID, updatedBy int64, members []models.Member) error {
	ts := now()
	matchedAny := false
	for _, m := range members {
		if m.Role == "" {
			m.Role = models.RoleMember
		}
		m.JoinedAt = ts

		res, err := s.coll.UpdateOne(ctx,
			bson.M{
				"_id":     chatID,
				"members": bson.M{"$not": bson.M{"$elemMatch": bson.M{"userId": m.UserID}}},
			},
			bson.M{
				"$push": bson.M{"members": m},
				"$set":  bson.M{"updatedAt": ts, "updatedBy": updatedBy},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			matchedAny = true
		}
	}

	if !matchedAny {
		// Either the chat is gone or every member was already present;
		// disambiguate for the caller.
		count, err := s.coll.CountDocuments(ctx, bson.M{"_id": chatID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrChatNotFound
		}
	}
	return nil
}

func (s *ChatStore) RemoveMember(ctx context.Context, chatID primitive.ObjectID, updatedBy, userID int64) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{
			"$pull": bson.M{"members": bson.M{"userId": userID}},
			"$set":  bson.M{"updatedAt": now(), "updatedBy": updatedBy},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// SetMuted toggles the member's mute flag, which gates push delivery.
func (s *ChatStore) SetMuted(ctx context.Context, chatID primitive.ObjectID, userID int64, muted bool) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID, "members.userId": userID},
		bson.M{"$set": bson.M{"members.$.muted": muted}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotMember
	}
	return nil
}

// MarkRead advances the member's read mark. $max keeps lastReadAt monotonic
// even when acknowledgements arrive out of order.
func (s *ChatStore) MarkRead(ctx context.Context, chatID primitive.ObjectID, userID, readAt int64) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID, "members.userId": userID},
		bson.M{"$max": bson.M{"members.$.lastReadAt": readAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotMember
	}
	return nil
}

// Touch bumps the chat's activity timestamp so listings sort by recency.
func (s *ChatStore) Touch(ctx context.Context, chatID primitive.ObjectID, ts int64) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$max": bson.M{"updatedAt": ts}},
	)
	return err
}

func (s *ChatStore) Rename(ctx context.Context, chatID primitive.ObjectID, updatedBy int64, name string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID, "type": models.ChatTypeGroup},
		bson.M{"$set": bson.M{"name": name, "updatedAt": now(), "updatedBy": updatedBy}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *ChatStore) SetAvatar(ctx context.Context, chatID primitive.ObjectID, updatedBy int64, avatar string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"avatar": avatar, "updatedAt": now(), "updatedBy": updatedBy}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// SyncMemberProfile rewrites the user's denormalized member fields across
// every chat whose roster contains them. It runs after the relational
// profile update and is best-effort: the caller logs failures and does not
// fail the primary write.
func (s *ChatStore) SyncMemberProfile(ctx context.Context, userID int64, changes models.ProfileChanges) (int64, error) {
	update := profileSyncUpdate(changes, now())
	if update == nil {
		return 0, nil
	}

	res, err := s.coll.UpdateMany(ctx,
		bson.M{"members.userId": userID},
		update,
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"m.userId": userID}},
		}),
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// profileSyncUpdate maps changed profile fields onto the embedded member
// paths. Returns nil when there is nothing to rewrite.
func profileSyncUpdate(changes models.ProfileChanges, ts int64) bson.M {
	if changes.Empty() {
		return nil
	}
	set := bson.M{"updatedAt": ts}
	if changes.Name != nil {
		set["members.$[m].userName"] = *changes.Name
	}
	if changes.Avatar != nil {
		set["members.$[m].avatar"] = *changes.Avatar
	}
	if changes.Email != nil {
		set["members.$[m].email"] = *changes.Email
	}
	if changes.Phone != nil {
		set["members.$[m].phone"] = *changes.Phone
	}
	return bson.M{"$set": set}
}

// DeleteByCourseSection removes every group chat bound to a completed course
// section. Messages are left behind for the retention sweep.
func (s *ChatStore) DeleteByCourseSection(ctx context.Context, courseSection int64) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{
		"type":          models.ChatTypeGroup,
		"courseSection": courseSection,
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// PurgeUser runs the inactive-account sweep: private chats with the user are
// deleted outright, group rosters drop the member.
func (s *ChatStore) PurgeUser(ctx context.Context, userID int64) (deleted, updated int64, err error) {
	delRes, err := s.coll.DeleteMany(ctx, bson.M{
		"type":           models.ChatTypePrivate,
		"members.userId": userID,
	})
	if err != nil {
		return 0, 0, err
	}

	updRes, err := s.coll.UpdateMany(ctx,
		bson.M{"type": models.ChatTypeGroup, "members.userId": userID},
		bson.M{
			"$pull": bson.M{"members": bson.M{"userId": userID}},
			"$set":  bson.M{"updatedAt": now()},
		},
	)
	if err != nil {
		return delRes.DeletedCount, 0, err
	}
	return delRes.DeletedCount, updRes.ModifiedCount, nil
}
