package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"campushub/models"
)

// RoomLoader yields the chats a user belongs to so a fresh connection can be
// auto-subscribed to each one's broadcast group.
type RoomLoader interface {
	MembershipsFor(ctx context.Context, userID int64) ([]models.Membership, error)
}

// ChatService is the slice of message orchestration the transport invokes.
type ChatService interface {
	SendMessage(ctx context.Context, chatID primitive.ObjectID, senderID int64, in models.SendMessageInput) (*models.Message, error)
	IsMember(ctx context.Context, chatID primitive.ObjectID, userID int64) (bool, error)
	MarkRead(ctx context.Context, chatID primitive.ObjectID, userID, readAt int64) error
}

// Manager owns the presence registry and the per-chat broadcast groups. One
// goroutine serializes connect/disconnect through the register channels; room
// membership is guarded by its own lock.
type Manager struct {
	presence *Presence

	mu    sync.RWMutex
	rooms map[string]map[int64]bool // chatID -> set of userIDs

	register   chan *Client
	unregister chan *Client

	loader RoomLoader
	chat   ChatService
	log    *zap.SugaredLogger
}

func NewManager(loader RoomLoader, log *zap.SugaredLogger) *Manager {
	return &Manager{
		presence:   NewPresence(),
		rooms:      make(map[string]map[int64]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		loader:     loader,
		log:        log,
	}
}

// SetChatService wires the orchestration layer after construction; the
// service needs the manager for broadcasts, so the two meet in main.
func (m *Manager) SetChatService(chat ChatService) {
	m.chat = chat
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.presence.Register(client.userID, client)
			m.log.Infow("client connected", "userId", client.userID, "conn", client.id)

		case client := <-m.unregister:
			if m.presence.Unregister(client) {
				m.leaveAllRooms(client.userID)
			}
			client.closeSend()
			m.log.Infow("client disconnected", "userId", client.userID, "conn", client.id)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (m *Manager) IsOnline(userID int64) bool {
	return m.presence.IsOnline(userID)
}

// EmitToUser sends an enveloped event to every connection of the user. Slow
// consumers get dropped frames, never a blocked fan-out.
func (m *Manager) EmitToUser(userID int64, event string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type":    event,
		"payload": payload,
	})
	if err != nil {
		m.log.Errorw("marshal event", "event", event, "err", err)
		return
	}
	for _, c := range m.presence.HandlesFor(userID) {
		c.enqueue(data)
	}
}

// BroadcastToRoom emits the event to every subscribed member of the chat.
func (m *Manager) BroadcastToRoom(chatID, event string, payload interface{}) {
	m.mu.RLock()
	userIDs := make([]int64, 0, len(m.rooms[chatID]))
	for id := range m.rooms[chatID] {
		userIDs = append(userIDs, id)
	}
	m.mu.RUnlock()

	for _, id := range userIDs {
		m.EmitToUser(id, event, payload)
	}
}

func (m *Manager) JoinRoom(chatID string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[chatID] == nil {
		m.rooms[chatID] = make(map[int64]bool)
	}
	m.rooms[chatID][userID] = true
}

func (m *Manager) LeaveRoom(chatID string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if members, ok := m.rooms[chatID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, chatID)
		}
	}
}

func (m *Manager) leaveAllRooms(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chatID, members := range m.rooms {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, chatID)
		}
	}
}

// autoJoin subscribes the user to every chat they belong to. Invoked on the
// register event; a user with no chats is fine.
func (m *Manager) autoJoin(ctx context.Context, userID int64) []models.Membership {
	memberships, err := m.loader.MembershipsFor(ctx, userID)
	if err != nil {
		m.log.Warnw("room auto-join failed", "userId", userID, "err", err)
		return nil
	}
	for _, ms := range memberships {
		m.JoinRoom(ms.ChatID.Hex(), userID)
	}
	return memberships
}
