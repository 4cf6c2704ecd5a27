package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"campushub/models"
)

type stubLoader struct{}

func (stubLoader) MembershipsFor(_ context.Context, _ int64) ([]models.Membership, error) {
	return nil, nil
}

type stubChatService struct {
	member bool
}

func (s *stubChatService) SendMessage(_ context.Context, _ primitive.ObjectID, _ int64, _ models.SendMessageInput) (*models.Message, error) {
	return nil, nil
}

func (s *stubChatService) IsMember(_ context.Context, _ primitive.ObjectID, _ int64) (bool, error) {
	return s.member, nil
}

func (s *stubChatService) MarkRead(_ context.Context, _ primitive.ObjectID, _ int64, _ int64) error {
	return nil
}

func newTestManager(chat ChatService) *Manager {
	m := NewManager(stubLoader{}, zap.NewNop().Sugar())
	m.SetChatService(chat)
	return m
}

func testClient(userID int64, m *Manager) *Client {
	return &Client{
		id:      "test",
		userID:  userID,
		send:    make(chan []byte, 4),
		manager: m,
	}
}

// A fan-out can snapshot a handle just before the owning connection
// disconnects; the late enqueue must be a silent drop, not a send on a
// closed channel.
func TestEmitAfterDisconnectIsDropped(t *testing.T) {
	m := newTestManager(&stubChatService{})
	c := testClient(1, m)

	m.presence.Register(c.userID, c)
	handles := m.presence.HandlesFor(c.userID)
	require.Len(t, handles, 1)

	// disconnect path runs between the snapshot and the emit
	m.presence.Unregister(c)
	c.closeSend()

	assert.NotPanics(t, func() {
		handles[0].enqueue([]byte(`{"type":"receive_message"}`))
	})
}

func TestCloseSendIsIdempotent(t *testing.T) {
	c := testClient(1, newTestManager(&stubChatService{}))
	assert.NotPanics(t, func() {
		c.closeSend()
		c.closeSend()
		c.enqueue([]byte("late"))
	})
}

func decodeFrame(t *testing.T, data []byte) (string, map[string]interface{}) {
	t.Helper()
	var frame struct {
		Type    string                 `json:"type"`
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame.Type, frame.Payload
}

func TestRelayRequiresMembership(t *testing.T) {
	chatID := primitive.NewObjectID()
	svc := &stubChatService{member: false}
	m := newTestManager(svc)

	target := testClient(9, m)
	m.presence.Register(target.userID, target)
	m.JoinRoom(chatID.Hex(), target.userID)

	intruder := testClient(5, m)
	payload, _ := json.Marshal(map[string]string{
		"chatId":    chatID.Hex(),
		"messageId": primitive.NewObjectID().Hex(),
	})

	intruder.handleRelay("del_message", payload)

	select {
	case data := <-target.send:
		t.Fatalf("non-member relay reached the room: %s", data)
	default:
	}

	require.Len(t, intruder.send, 1)
	event, _ := decodeFrame(t, <-intruder.send)
	assert.Equal(t, "error", event)
}

func TestRelayBroadcastsForMembers(t *testing.T) {
	chatID := primitive.NewObjectID()
	svc := &stubChatService{member: true}
	m := newTestManager(svc)

	target := testClient(9, m)
	m.presence.Register(target.userID, target)
	m.JoinRoom(chatID.Hex(), target.userID)

	sender := testClient(5, m)
	payload, _ := json.Marshal(map[string]string{
		"chatId":    chatID.Hex(),
		"messageId": primitive.NewObjectID().Hex(),
	})

	sender.handleRelay("pin_message", payload)

	require.Len(t, target.send, 1)
	event, body := decodeFrame(t, <-target.send)
	assert.Equal(t, "pin_message", event)
	assert.Equal(t, chatID.Hex(), body["chatId"])
	assert.Equal(t, float64(5), body["userId"])
}
