package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"campushub/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
)

// Client is one live socket. A connection only speaks for the user its token
// was minted for; the register event binds it into the presence registry.
type Client struct {
	id      string
	userID  int64
	conn    *websocket.Conn
	send    chan []byte
	manager *Manager

	registered bool

	// mu guards closed so that a fan-out holding a stale handle snapshot
	// cannot race the disconnect path onto a closed send channel.
	mu     sync.Mutex
	closed bool
}

func newClient(userID int64, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, 256),
		manager: manager,
	}
}

// enqueue hands a frame to the write pump, dropping it if the client cannot
// keep up or has already disconnected.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend shuts down the write pump. Safe to call more than once and
// against concurrent enqueues.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) reply(event string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type":    event,
		"payload": payload,
	})
	if err != nil {
		c.manager.log.Errorw("marshal reply", "event", event, "err", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) replyError(msg string) {
	c.reply("error", map[string]interface{}{"message": msg})
}

type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.log.Debugw("read error", "userId", c.userID, "err", err)
			}
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.replyError("malformed event")
			continue
		}
		c.handleEvent(ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(ev inboundEvent) {
	switch ev.Type {
	case "register":
		c.handleRegister()
	case "join_chat":
		c.handleJoinChat(ev.Payload)
	case "send_message":
		c.handleSendMessage(ev.Payload)
	case "pin_message", "unpin_message", "del_message":
		c.handleRelay(ev.Type, ev.Payload)
	case "typing_start", "typing_end":
		c.handleTyping(ev.Type, ev.Payload)
	case "message_read":
		c.handleMessageRead(ev.Payload)
	case "ping":
		c.reply("pong", map[string]interface{}{"time": time.Now().UnixMilli()})
	default:
		c.replyError("unknown event: " + ev.Type)
	}
}

// handleRegister binds the connection into presence and auto-joins every
// chat the user belongs to.
func (c *Client) handleRegister() {
	if c.registered {
		return
	}
	c.registered = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	memberships := c.manager.autoJoin(ctx, c.userID)
	chats := make([]map[string]interface{}, 0, len(memberships))
	for _, ms := range memberships {
		chats = append(chats, map[string]interface{}{
			"chatId": ms.ChatID.Hex(),
			"muted":  ms.Muted,
		})
	}
	c.reply("registered", map[string]interface{}{
		"userId": c.userID,
		"chats":  chats,
	})
}

func (c *Client) handleJoinChat(payload json.RawMessage) {
	var req struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" {
		c.replyError("chatId required")
		return
	}
	chatID, err := primitive.ObjectIDFromHex(req.ChatID)
	if err != nil {
		c.replyError("invalid chatId")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := c.manager.chat.IsMember(ctx, chatID, c.userID)
	if err != nil || !ok {
		c.replyError("not a member of this chat")
		return
	}

	c.manager.JoinRoom(req.ChatID, c.userID)
	c.reply("chat_joined", map[string]interface{}{"chatId": req.ChatID})
}

func (c *Client) handleSendMessage(payload json.RawMessage) {
	var req struct {
		ChatID  string                  `json:"chatId"`
		Message models.SendMessageInput `json:"message"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		c.replyError("malformed send_message payload")
		return
	}
	chatID, err := primitive.ObjectIDFromHex(req.ChatID)
	if err != nil {
		c.replyError("invalid chatId")
		return
	}
	if req.Message.Content == "" {
		c.replyError("content required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg, err := c.manager.chat.SendMessage(ctx, chatID, c.userID, req.Message)
	if err != nil {
		c.manager.log.Warnw("ws send failed", "userId", c.userID, "chatId", req.ChatID, "err", err)
		c.replyError("message not sent")
		return
	}
	c.reply("message_sent", msg)
}

// handleRelay forwards pin/unpin/delete signals to the chat's room. The
// state change itself was already committed over REST; this layer only tells
// live clients to refresh. Only roster members may inject relays.
func (c *Client) handleRelay(event string, payload json.RawMessage) {
	var req struct {
		ChatID    string `json:"chatId"`
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" {
		c.replyError("malformed " + event + " payload")
		return
	}
	chatID, err := primitive.ObjectIDFromHex(req.ChatID)
	if err != nil {
		c.replyError("invalid chatId")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := c.manager.chat.IsMember(ctx, chatID, c.userID)
	if err != nil || !ok {
		c.replyError("not a member of this chat")
		return
	}

	c.manager.BroadcastToRoom(req.ChatID, event, map[string]interface{}{
		"chatId":    req.ChatID,
		"messageId": req.MessageID,
		"userId":    c.userID,
	})
}

func (c *Client) handleTyping(event string, payload json.RawMessage) {
	var req struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" {
		return
	}
	c.manager.BroadcastToRoom(req.ChatID, event, map[string]interface{}{
		"chatId":    req.ChatID,
		"userId":    c.userID,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (c *Client) handleMessageRead(payload json.RawMessage) {
	var req struct {
		ChatID string `json:"chatId"`
		ReadAt int64  `json:"readAt"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ChatID == "" {
		return
	}
	chatID, err := primitive.ObjectIDFromHex(req.ChatID)
	if err != nil {
		return
	}
	if req.ReadAt == 0 {
		req.ReadAt = time.Now().UnixMilli()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.manager.chat.MarkRead(ctx, chatID, c.userID, req.ReadAt); err != nil {
		c.manager.log.Debugw("mark read failed", "userId", c.userID, "chatId", req.ChatID, "err", err)
		return
	}

	c.manager.BroadcastToRoom(req.ChatID, "message_read", map[string]interface{}{
		"chatId": req.ChatID,
		"userId": c.userID,
		"readAt": req.ReadAt,
	})
}
