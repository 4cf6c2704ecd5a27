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

type MessageStore struct {
	coll *mongo.Collection
	log  *zap.SugaredLogger
}

func NewMessageStore(coll *mongo.Collection, log *zap.SugaredLogger) *MessageStore {
	return &MessageStore{coll: coll, log: log}
}

// Insert persists a new message, assigning its id and creation timestamp.
// The timestamp orders messages on the client side.
func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now().UnixMilli()
	msg.UpdatedAt = msg.CreatedAt
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}

	_, err := s.coll.InsertOne(ctx, msg)
	return err
}

func (s *MessageStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// History returns up to limit messages of a chat ordered oldest first.
// before=0 starts from the latest; otherwise only messages created strictly
// earlier are returned. Recalled messages carry the tombstone as content.
func (s *MessageStore) History(ctx context.Context, chatID primitive.ObjectID, before int64, limit int64) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{"chatId": chatID}
	if before > 0 {
		filter["createdAt"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// reverse to chronological order and hide recalled content
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for i := range messages {
		if messages[i].IsDeleted {
			messages[i].Content = models.DeletedPlaceholder
			messages[i].Filename = ""
		}
	}
	return messages, nil
}

// SoftDelete marks the sender's message as recalled. Repeating the call is a
// no-op: the flag stays true and the stored content is never touched.
func (s *MessageStore) SoftDelete(ctx context.Context, chatID, messageID primitive.ObjectID, senderID int64) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "chatId": chatID, "senderId": senderID},
		bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": time.Now().UnixMilli()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Pin annotates a message; any member may pin.
func (s *MessageStore) Pin(ctx context.Context, chatID, messageID primitive.ObjectID, pinnedBy int64) (*models.PinnedInfo, error) {
	info := &models.PinnedInfo{PinnedBy: pinnedBy, PinnedAt: time.Now().UnixMilli()}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "chatId": chatID, "isDeleted": false},
		bson.M{"$set": bson.M{"pinned": info, "updatedAt": info.PinnedAt}},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrMessageNotFound
	}
	return info, nil
}

func (s *MessageStore) Unpin(ctx context.Context, chatID, messageID primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "chatId": chatID},
		bson.M{
			"$unset": bson.M{"pinned": ""},
			"$set":   bson.M{"updatedAt": time.Now().UnixMilli()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// UnreadCount counts messages created after the member's read mark, not sent
// by the member themselves.
func (s *MessageStore) UnreadCount(ctx context.Context, chatID primitive.ObjectID, since, userID int64) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{
		"chatId":    chatID,
		"createdAt": bson.M{"$gt": since},
		"senderId":  bson.M{"$ne": userID},
	})
}
