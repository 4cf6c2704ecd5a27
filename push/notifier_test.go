package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDead = errors.New("registration-token-not-registered")

type fakeTokens struct {
	tokens      []string
	err         error
	invalidated []string
}

func (f *fakeTokens) TokensFor(_ context.Context, _ int64) ([]string, error) {
	return f.tokens, f.err
}

func (f *fakeTokens) Invalidate(_ context.Context, token string) error {
	f.invalidated = append(f.invalidated, token)
	return nil
}

type fakeMulticaster struct {
	got  *messaging.MulticastMessage
	resp *messaging.BatchResponse
	err  error
}

func (f *fakeMulticaster) SendEachForMulticast(_ context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.got = msg
	return f.resp, f.err
}

func newTestNotifier(client *fakeMulticaster, tokens *fakeTokens) *Notifier {
	return &Notifier{
		client:    client,
		tokens:    tokens,
		log:       zap.NewNop().Sugar(),
		deadToken: func(err error) bool { return errors.Is(err, errDead) },
	}
}

func TestSendToUserNoTokensIsNoop(t *testing.T) {
	client := &fakeMulticaster{}
	n := newTestNotifier(client, &fakeTokens{})

	n.SendToUser(context.Background(), 1, Notification{ChatID: "abc", Preview: "hi"})

	assert.Nil(t, client.got, "gateway must not be called without tokens")
}

func TestSendToUserBuildsMulticastPayload(t *testing.T) {
	client := &fakeMulticaster{resp: &messaging.BatchResponse{SuccessCount: 2}}
	tokens := &fakeTokens{tokens: []string{"tok-a", "tok-b"}}
	n := newTestNotifier(client, tokens)

	n.SendToUser(context.Background(), 1, Notification{
		ChatID:     "chat-1",
		SenderName: "Alice",
		Preview:    "see you at 3",
	})

	require.NotNil(t, client.got)
	assert.Equal(t, []string{"tok-a", "tok-b"}, client.got.Tokens)
	assert.Equal(t, "Alice", client.got.Notification.Title)
	assert.Equal(t, "see you at 3", client.got.Notification.Body)
	assert.Equal(t, map[string]string{
		"chat_id": "chat-1",
		"sender":  "Alice",
		"preview": "see you at 3",
	}, client.got.Data)
	require.NotNil(t, client.got.Android)
	assert.Equal(t, "high", client.got.Android.Priority)
	assert.Equal(t, "chat_messages", client.got.Android.Notification.ChannelID)
	assert.Empty(t, tokens.invalidated)
}

func TestSendToUserFallbackTitle(t *testing.T) {
	client := &fakeMulticaster{resp: &messaging.BatchResponse{SuccessCount: 1}}
	n := newTestNotifier(client, &fakeTokens{tokens: []string{"tok-a"}})

	n.SendToUser(context.Background(), 1, Notification{ChatID: "chat-1", Preview: "hi"})

	require.NotNil(t, client.got)
	assert.Equal(t, "New message", client.got.Notification.Title)
}

func TestSendToUserPrunesDeadTokens(t *testing.T) {
	client := &fakeMulticaster{resp: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 2,
		Responses: []*messaging.SendResponse{
			{Success: true},
			{Success: false, Error: errDead},
			{Success: false, Error: errors.New("internal")},
		},
	}}
	tokens := &fakeTokens{tokens: []string{"tok-live", "tok-dead", "tok-flaky"}}
	n := newTestNotifier(client, tokens)

	n.SendToUser(context.Background(), 1, Notification{ChatID: "chat-1", Preview: "hi"})

	// only the token the gateway reported dead leaves the registry
	assert.Equal(t, []string{"tok-dead"}, tokens.invalidated)
}

func TestSendToUserGatewayErrorIsDropped(t *testing.T) {
	client := &fakeMulticaster{err: errors.New("unavailable")}
	tokens := &fakeTokens{tokens: []string{"tok-a"}}
	n := newTestNotifier(client, tokens)

	n.SendToUser(context.Background(), 1, Notification{ChatID: "chat-1", Preview: "hi"})

	assert.Empty(t, tokens.invalidated)
}

func TestSendToUserTokenLookupError(t *testing.T) {
	client := &fakeMulticaster{}
	n := newTestNotifier(client, &fakeTokens{err: errors.New("mongo down")})

	n.SendToUser(context.Background(), 1, Notification{ChatID: "chat-1", Preview: "hi"})

	assert.Nil(t, client.got)
}
