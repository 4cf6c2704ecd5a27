// Package push wraps the Firebase Cloud Messaging multicast API. Delivery is
// best-effort: failures are logged, never retried, and tokens the gateway
// reports dead are pruned from the registry.
package push

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Notification is the per-user payload the fan-out hands to the gateway.
type Notification struct {
	ChatID     string
	SenderName string
	Preview    string
}

// TokenSource is the device-token registry slice the notifier needs.
type TokenSource interface {
	TokensFor(ctx context.Context, userID int64) ([]string, error)
	Invalidate(ctx context.Context, token string) error
}

// multicaster matches *messaging.Client.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Notifier struct {
	client multicaster
	tokens TokenSource
	log    *zap.SugaredLogger

	// deadToken classifies per-token gateway errors worth pruning for.
	deadToken func(error) bool
}

func NewNotifier(ctx context.Context, credentialsFile string, tokens TokenSource, log *zap.SugaredLogger) (*Notifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}

	return &Notifier{
		client:    client,
		tokens:    tokens,
		log:       log,
		deadToken: isDeadToken,
	}, nil
}

func isDeadToken(err error) bool {
	return messaging.IsUnregistered(err) || errorutils.IsInvalidArgument(err)
}

// SendToUser multicasts one notification to every enabled device of the
// user. Having no registered device is not an error. Per-token results are
// inspected so dead tokens leave the registry; any other failure is logged
// and dropped.
func (n *Notifier) SendToUser(ctx context.Context, userID int64, note Notification) {
	tokens, err := n.tokens.TokensFor(ctx, userID)
	if err != nil {
		n.log.Warnw("push: token lookup failed", "userId", userID, "err", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.title(note),
			Body:  note.Preview,
		},
		Data: map[string]string{
			"chat_id": note.ChatID,
			"sender":  note.SenderName,
			"preview": note.Preview,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "chat_messages",
			},
		},
	}

	resp, err := n.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		n.log.Warnw("push: multicast failed", "userId", userID, "err", err)
		return
	}

	if resp.FailureCount == 0 {
		return
	}
	for i, r := range resp.Responses {
		if r.Success || r.Error == nil {
			continue
		}
		if n.deadToken(r.Error) {
			if err := n.tokens.Invalidate(ctx, tokens[i]); err != nil {
				n.log.Warnw("push: token prune failed", "err", err)
			}
			continue
		}
		n.log.Debugw("push: delivery failed", "userId", userID, "err", r.Error)
	}
}

func (n *Notifier) title(note Notification) string {
	if note.SenderName == "" {
		return "New message"
	}
	return note.SenderName
}
