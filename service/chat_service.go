// Package service orchestrates the chat core: message sends with their
// fan-out, roster administration, and the profile sync relay between the
// relational store and the denormalized chat rosters.
package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"campushub/directory"
	"campushub/dispatch"
	"campushub/models"
	"campushub/store"
)

var (
	ErrNotMember      = store.ErrNotMember
	ErrInvalidMessage = errors.New("invalid message")
	ErrInvalidReply   = errors.New("reply target not in this chat")
)

// Realtime is the live-transport surface the service pushes events through.
type Realtime interface {
	EmitToUser(userID int64, event string, payload interface{})
	BroadcastToRoom(chatID, event string, payload interface{})
	JoinRoom(chatID string, userID int64)
}

type ChatService struct {
	chats      *store.ChatStore
	messages   *store.MessageStore
	users      directory.UserDirectory
	dispatcher *dispatch.Dispatcher
	realtime   Realtime
	log        *zap.SugaredLogger
}

func NewChatService(
	chats *store.ChatStore,
	messages *store.MessageStore,
	users directory.UserDirectory,
	dispatcher *dispatch.Dispatcher,
	realtime Realtime,
	log *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		chats:      chats,
		messages:   messages,
		users:      users,
		dispatcher: dispatcher,
		realtime:   realtime,
		log:        log,
	}
}

// SendMessage persists a message and fans it out. The sender must be on the
// roster; their name is snapshotted onto the message so history survives
// later profile changes.
func (s *ChatService) SendMessage(ctx context.Context, chatID primitive.ObjectID, senderID int64, in models.SendMessageInput) (*models.Message, error) {
	if in.Content == "" {
		return nil, ErrInvalidMessage
	}
	switch in.Type {
	case "", models.MessageTypeText:
		in.Type = models.MessageTypeText
	case models.MessageTypeImage, models.MessageTypeFile, models.MessageTypeLink:
	default:
		return nil, ErrInvalidMessage
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	sender, ok := chat.MemberOf(senderID)
	if !ok {
		return nil, ErrNotMember
	}

	msg := &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: sender.UserName,
		Type:       in.Type,
		Content:    in.Content,
		Filename:   in.Filename,
	}

	if in.ReplyTo != "" {
		ref, err := s.replyRef(ctx, chatID, in.ReplyTo)
		if err != nil {
			return nil, err
		}
		msg.ReplyTo = ref
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.chats.Touch(ctx, chatID, msg.CreatedAt); err != nil {
		s.log.Warnw("chat activity bump failed", "chatId", chatID.Hex(), "err", err)
	}

	s.dispatcher.Dispatch(ctx, chatID, msg)
	return msg, nil
}

// replyRef snapshots the replied-to message. Recalled targets snapshot the
// tombstone, not the original content.
func (s *ChatService) replyRef(ctx context.Context, chatID primitive.ObjectID, replyTo string) (*models.ReplyRef, error) {
	id, err := primitive.ObjectIDFromHex(replyTo)
	if err != nil {
		return nil, ErrInvalidReply
	}
	orig, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, ErrInvalidReply
	}
	if orig.ChatID != chatID {
		return nil, ErrInvalidReply
	}
	return &models.ReplyRef{
		MessageID:  orig.ID,
		Type:       orig.Type,
		Content:    orig.Display(),
		SenderID:   orig.SenderID,
		SenderName: orig.SenderName,
	}, nil
}

func (s *ChatService) IsMember(ctx context.Context, chatID primitive.ObjectID, userID int64) (bool, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			return false, nil
		}
		return false, err
	}
	_, ok := chat.MemberOf(userID)
	return ok, nil
}

func (s *ChatService) MarkRead(ctx context.Context, chatID primitive.ObjectID, userID, readAt int64) error {
	return s.chats.MarkRead(ctx, chatID, userID, readAt)
}

// RecallMessage soft-deletes the sender's own message and tells live clients
// to swap in the tombstone. Recalling twice is a no-op.
func (s *ChatService) RecallMessage(ctx context.Context, chatID, messageID primitive.ObjectID, userID int64) error {
	if err := s.messages.SoftDelete(ctx, chatID, messageID, userID); err != nil {
		return err
	}
	s.realtime.BroadcastToRoom(chatID.Hex(), "del_message", map[string]interface{}{
		"chatId":    chatID.Hex(),
		"messageId": messageID.Hex(),
		"userId":    userID,
	})
	return nil
}

func (s *ChatService) PinMessage(ctx context.Context, chatID, messageID primitive.ObjectID, userID int64) (*models.PinnedInfo, error) {
	ok, err := s.IsMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	info, err := s.messages.Pin(ctx, chatID, messageID, userID)
	if err != nil {
		return nil, err
	}
	s.realtime.BroadcastToRoom(chatID.Hex(), "pin_message", map[string]interface{}{
		"chatId":    chatID.Hex(),
		"messageId": messageID.Hex(),
		"pinned":    info,
	})
	return info, nil
}

func (s *ChatService) UnpinMessage(ctx context.Context, chatID, messageID primitive.ObjectID, userID int64) error {
	ok, err := s.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}

	if err := s.messages.Unpin(ctx, chatID, messageID); err != nil {
		return err
	}
	s.realtime.BroadcastToRoom(chatID.Hex(), "unpin_message", map[string]interface{}{
		"chatId":    chatID.Hex(),
		"messageId": messageID.Hex(),
		"userId":    userID,
	})
	return nil
}

// CreatePrivateChat starts (or returns) the private chat between two users,
// with rosters seeded from the relational directory.
func (s *ChatService) CreatePrivateChat(ctx context.Context, requesterID, otherID int64) (*models.Chat, bool, error) {
	requester, err := s.memberFromProfile(ctx, requesterID)
	if err != nil {
		return nil, false, err
	}
	other, err := s.memberFromProfile(ctx, otherID)
	if err != nil {
		return nil, false, err
	}

	chat, created, err := s.chats.CreatePrivate(ctx, requester, other)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.realtime.JoinRoom(chat.ID.Hex(), requesterID)
		s.realtime.JoinRoom(chat.ID.Hex(), otherID)
		s.realtime.EmitToUser(otherID, "chat_created", map[string]interface{}{
			"chatId": chat.ID.Hex(),
			"name":   chat.DisplayNameFor(otherID),
		})
	}
	return chat, created, nil
}

// CreateCourseChat creates the group chat for a course section. The creator
// joins as admin, lecturers keep their role, everyone else is a member.
func (s *ChatService) CreateCourseChat(ctx context.Context, createdBy int64, name, avatar string, courseSection int64, memberIDs []int64, lecturerIDs []int64) (*models.Chat, error) {
	lecturers := make(map[int64]bool, len(lecturerIDs))
	for _, id := range lecturerIDs {
		lecturers[id] = true
	}

	members := make([]models.Member, 0, len(memberIDs)+1)
	creator, err := s.memberFromProfile(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	creator.Role = models.RoleAdmin
	members = append(members, creator)

	for _, id := range memberIDs {
		if id == createdBy {
			continue
		}
		m, err := s.memberFromProfile(ctx, id)
		if err != nil {
			s.log.Warnw("skipping unknown user in roster", "userId", id, "err", err)
			continue
		}
		if lecturers[id] {
			m.Role = models.RoleLecturer
		}
		members = append(members, m)
	}

	chat, err := s.chats.CreateGroup(ctx, createdBy, name, avatar, courseSection, members)
	if err != nil {
		return nil, err
	}
	for _, m := range chat.Members {
		s.realtime.JoinRoom(chat.ID.Hex(), m.UserID)
		s.realtime.EmitToUser(m.UserID, "chat_created", map[string]interface{}{
			"chatId": chat.ID.Hex(),
			"name":   chat.Name,
		})
	}
	return chat, nil
}

func (s *ChatService) memberFromProfile(ctx context.Context, userID int64) (models.Member, error) {
	p, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return models.Member{}, err
	}
	return models.Member{
		UserID:   p.UserID,
		UserName: p.Name,
		Role:     models.RoleMember,
		Avatar:   p.Avatar,
		Email:    p.Email,
		Phone:    p.Phone,
	}, nil
}

// UpdateProfile writes the relational profile, then relays the change into
// every roster containing the user. The relay is best-effort: a failure
// leaves stale copies behind, logs a warning, and the primary update still
// succeeds.
func (s *ChatService) UpdateProfile(ctx context.Context, userID int64, changes models.ProfileChanges) (*models.Profile, error) {
	profile, err := s.users.UpdateProfile(ctx, userID, changes)
	if err != nil {
		return nil, err
	}

	if n, err := s.chats.SyncMemberProfile(ctx, userID, changes); err != nil {
		s.log.Warnw("profile sync relay failed, rosters are stale",
			"userId", userID, "err", err)
	} else if n > 0 {
		s.log.Infow("profile synced into rosters", "userId", userID, "chats", n)
	}
	return profile, nil
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
	Muted      bool   `json:"muted"`
	Unread     int64  `json:"unread"`
	LastReadAt int64  `json:"lastReadAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// ListChats returns the caller's chats with unread counts derived from their
// read marks.
func (s *ChatService) ListChats(ctx context.Context, userID int64) ([]ChatSummary, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		member, ok := chat.MemberOf(userID)
		if !ok {
			continue
		}
		unread, err := s.messages.UnreadCount(ctx, chat.ID, member.LastReadAt, userID)
		if err != nil {
			s.log.Warnw("unread count failed", "chatId", chat.ID.Hex(), "err", err)
		}
		summaries = append(summaries, ChatSummary{
			ID:         chat.ID.Hex(),
			Type:       chat.Type,
			Name:       chat.DisplayNameFor(userID),
			Avatar:     chat.Avatar,
			Muted:      member.Muted,
			Unread:     unread,
			LastReadAt: member.LastReadAt,
			UpdatedAt:  chat.UpdatedAt,
		})
	}
	return summaries, nil
}

// PurgeUser is the inactive-account sweep.
func (s *ChatService) PurgeUser(ctx context.Context, userID int64) (deleted, updated int64, err error) {
	return s.chats.PurgeUser(ctx, userID)
}

// DeleteCourseChats is the course-completion sweep.
func (s *ChatService) DeleteCourseChats(ctx context.Context, courseSection int64) (int64, error) {
	return s.chats.DeleteByCourseSection(ctx, courseSection)
}
