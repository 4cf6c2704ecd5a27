// Package dispatch fans a persisted message out to its chat's roster: live
// events to online members, push notifications to the rest.
package dispatch

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"campushub/models"
	"campushub/push"
	"campushub/store"
)

// EventReceiveMessage is the live event emitted to each online member.
const EventReceiveMessage = "receive_message"

// LiveMessage is the per-member copy of a dispatched message. Muted is the
// receiving member's own flag so their client can render a silent delivery.
type LiveMessage struct {
	ChatID  string         `json:"chatId"`
	Message models.Message `json:"message"`
	Muted   bool           `json:"muted"`
}

// RosterSource yields a chat's member list.
type RosterSource interface {
	Roster(ctx context.Context, chatID primitive.ObjectID) ([]models.Member, error)
}

// Presence is the live-connection view the dispatcher needs.
type Presence interface {
	IsOnline(userID int64) bool
	EmitToUser(userID int64, event string, payload interface{})
}

// Pusher forwards a notification to the push gateway.
type Pusher interface {
	SendToUser(ctx context.Context, userID int64, note push.Notification)
}

type Dispatcher struct {
	roster   RosterSource
	presence Presence
	pusher   Pusher
	throttle *Throttle
	log      *zap.SugaredLogger
}

func NewDispatcher(roster RosterSource, presence Presence, pusher Pusher, throttle *Throttle, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		roster:   roster,
		presence: presence,
		pusher:   pusher,
		throttle: throttle,
		log:      log,
	}
}

// Dispatch delivers a persisted message to every roster member. Live emits
// carry the member's own muted flag; pushes skip the sender, muted members
// and throttled pairs. The message is already durable, so a vanished chat
// only aborts delivery, never loses data.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID primitive.ObjectID, msg *models.Message) {
	members, err := d.roster.Roster(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			d.log.Warnw("dispatch: chat vanished, dropping delivery", "chatId", chatID.Hex())
			return
		}
		d.log.Errorw("dispatch: roster load failed", "chatId", chatID.Hex(), "err", err)
		return
	}

	chatHex := chatID.Hex()
	preview := previewFor(msg)

	for _, member := range members {
		if d.presence.IsOnline(member.UserID) {
			d.presence.EmitToUser(member.UserID, EventReceiveMessage, LiveMessage{
				ChatID:  chatHex,
				Message: *msg,
				Muted:   member.Muted,
			})
		}

		if member.UserID == msg.SenderID {
			continue
		}
		if member.Muted {
			continue
		}
		if d.throttle.ShouldThrottle(member.UserID, chatHex) {
			continue
		}

		// Push is decoupled from the live path: a slow gateway call must
		// not delay other members' delivery.
		go d.pusher.SendToUser(context.WithoutCancel(ctx), member.UserID, push.Notification{
			ChatID:     chatHex,
			SenderName: msg.SenderName,
			Preview:    preview,
		})
	}
}

// previewFor derives the notification body from the message type.
func previewFor(msg *models.Message) string {
	switch msg.Type {
	case models.MessageTypeImage:
		return "📷 Photo"
	case models.MessageTypeFile:
		return "📎 File"
	default:
		body := msg.Content
		if len(body) > 100 {
			cut := 100
			for cut > 0 && !utf8.RuneStart(body[cut]) {
				cut--
			}
			body = body[:cut] + "..."
		}
		return body
	}
}
