package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campushub/middleware"
	"campushub/models"
	"campushub/service"
	"campushub/store"
)

// SendMessage is the REST send path; it shares the persist-and-dispatch
// pipeline with the websocket send_message event.
func (a *API) SendMessage(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req models.SendMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	msg, err := a.svc.SendMessage(ctx, chatID, middleware.UserID(c), req)
	switch {
	case errors.Is(err, service.ErrInvalidMessage), errors.Is(err, service.ErrInvalidReply):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, store.ErrNotMember), errors.Is(err, store.ErrChatNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to chat"})
		return
	case err != nil:
		a.log.Errorw("send message failed", "chatId", chatID.Hex(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages pages through chat history, oldest first. Recalled messages
// come back with the tombstone in place of content.
func (a *API) GetMessages(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	member, err := a.svc.IsMember(ctx, chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify chat access"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to chat"})
		return
	}

	messages, err := a.messages.History(ctx, chatID, before, limit)
	if err != nil {
		a.log.Errorw("history fetch failed", "chatId", chatID.Hex(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// DeleteMessage recalls the caller's own message. Deleting an already
// recalled message is still a 200.
func (a *API) DeleteMessage(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	messageID, ok := objectIDParam(c, "messageId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := a.svc.RecallMessage(ctx, chatID, messageID, middleware.UserID(c))
	if errors.Is(err, store.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": messageID.Hex()})
}

func (a *API) PinMessage(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	messageID, ok := objectIDParam(c, "messageId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	info, err := a.svc.PinMessage(ctx, chatID, messageID, middleware.UserID(c))
	switch {
	case errors.Is(err, store.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this chat"})
		return
	case errors.Is(err, store.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pin message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": info})
}

func (a *API) UnpinMessage(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	messageID, ok := objectIDParam(c, "messageId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := a.svc.UnpinMessage(ctx, chatID, messageID, middleware.UserID(c))
	switch {
	case errors.Is(err, store.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this chat"})
		return
	case errors.Is(err, store.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unpin message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unpinned": messageID.Hex()})
}

// MarkRead advances the caller's read mark; stale acknowledgements never
// move it backwards.
func (a *API) MarkRead(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ReadAt int64 `json:"readAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ReadAt == 0 {
		req.ReadAt = time.Now().UnixMilli()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := a.svc.MarkRead(ctx, chatID, middleware.UserID(c), req.ReadAt)
	if errors.Is(err, store.ErrNotMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this chat"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"readAt": req.ReadAt})
}
