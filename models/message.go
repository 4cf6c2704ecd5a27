package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeLink  = "link"
)

// DeletedPlaceholder replaces the content of recalled messages in any
// rendered copy. The stored content is kept.
const DeletedPlaceholder = "This message was deleted"

// ReplyRef snapshots the referenced message so history stays renderable even
// after the original is recalled.
type ReplyRef struct {
	MessageID  primitive.ObjectID `bson:"messageId" json:"messageId"`
	Type       string             `bson:"type" json:"type"`
	Content    string             `bson:"content" json:"content"`
	SenderID   int64              `bson:"senderId" json:"senderId"`
	SenderName string             `bson:"senderName" json:"senderName"`
}

type PinnedInfo struct {
	PinnedBy int64 `bson:"pinnedBy" json:"pinnedBy"`
	PinnedAt int64 `bson:"pinnedAt" json:"pinnedAt"`
}

type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID     primitive.ObjectID `bson:"chatId" json:"chatId"`
	SenderID   int64              `bson:"senderId" json:"senderId"`
	SenderName string             `bson:"senderName" json:"senderName"`
	Type       string             `bson:"type" json:"type"`
	Content    string             `bson:"content" json:"content"`
	Filename   string             `bson:"filename,omitempty" json:"filename,omitempty"`
	ReplyTo    *ReplyRef          `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	Pinned     *PinnedInfo        `bson:"pinned,omitempty" json:"pinned,omitempty"`
	IsDeleted  bool               `bson:"isDeleted" json:"isDeleted"`
	CreatedAt  int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt  int64              `bson:"updatedAt" json:"updatedAt"`
}

// Display returns the content to render, substituting the tombstone for
// recalled messages.
func (m *Message) Display() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	return m.Content
}

// SendMessageInput is the payload accepted from both the REST and websocket
// send paths.
type SendMessageInput struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
	ReplyTo  string `json:"replyTo,omitempty"`
}
