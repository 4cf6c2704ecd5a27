package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

const (
	RoleAdmin    = "admin"
	RoleLecturer = "lecturer"
	RoleMember   = "member"
	RoleSystem   = "system"
)

// Member is embedded inside a chat document. The roster is the source of
// truth for delivery; profile fields here are denormalized copies of the
// relational profile and are rewritten by the sync relay.
type Member struct {
	UserID     int64  `bson:"userId" json:"userId"`
	UserName   string `bson:"userName" json:"userName"`
	Role       string `bson:"role" json:"role"`
	Avatar     string `bson:"avatar" json:"avatar"`
	Email      string `bson:"email,omitempty" json:"email,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	JoinedAt   int64  `bson:"joinedAt" json:"joinedAt"`
	Muted      bool   `bson:"muted" json:"muted"`
	LastReadAt int64  `bson:"lastReadAt" json:"lastReadAt"`
}

type Chat struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type          string             `bson:"type" json:"type"`
	Name          string             `bson:"name" json:"name"`
	Avatar        string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	CourseSection int64              `bson:"courseSection,omitempty" json:"courseSection,omitempty"`
	CreatedBy     int64              `bson:"createdBy" json:"createdBy"`
	UpdatedBy     int64              `bson:"updatedBy" json:"updatedBy"`
	Members       []Member           `bson:"members" json:"members"`
	CreatedAt     int64              `bson:"createdAt" json:"createdAt"`
	UpdatedAt     int64              `bson:"updatedAt" json:"updatedAt"`
}

// Membership is the per-user projection returned by the room loader.
type Membership struct {
	ChatID primitive.ObjectID `json:"chatId"`
	Muted  bool               `json:"muted"`
}

// MemberOf returns the embedded member record for userID, if present.
func (c *Chat) MemberOf(userID int64) (Member, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// DisplayNameFor resolves the chat name shown to a viewer. Group chats carry
// their own name; a private chat is titled after the other member.
func (c *Chat) DisplayNameFor(viewerID int64) string {
	if c.Type != ChatTypePrivate {
		return c.Name
	}
	for _, m := range c.Members {
		if m.UserID != viewerID {
			return m.UserName
		}
	}
	return c.Name
}
