package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campushub/middleware"
	"campushub/models"
	"campushub/store"
)

func (a *API) ListChats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	summaries, err := a.svc.ListChats(ctx, middleware.UserID(c))
	if err != nil {
		a.log.Errorw("list chats failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chats"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (a *API) GetChat(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	chat, err := a.chats.GetByID(ctx, chatID)
	if errors.Is(err, store.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chat"})
		return
	}
	if _, ok := chat.MemberOf(userID); !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to chat"})
		return
	}

	chat.Name = chat.DisplayNameFor(userID)
	c.JSON(http.StatusOK, chat)
}

// CreatePrivateChat starts a two-party chat, reusing an existing one between
// the same pair.
func (a *API) CreatePrivateChat(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requesterID := middleware.UserID(c)
	if req.UserID == requesterID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	chat, created, err := a.svc.CreatePrivateChat(ctx, requesterID, req.UserID)
	if err != nil {
		a.log.Errorw("create private chat failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"id": chat.ID.Hex(), "created": created})
}

// CreateCourseChat creates the group chat for a course section (admin only).
func (a *API) CreateCourseChat(c *gin.Context) {
	var req struct {
		Name          string  `json:"name" binding:"required"`
		Avatar        string  `json:"avatar"`
		CourseSection int64   `json:"courseSection"`
		Members       []int64 `json:"members" binding:"required,min=1"`
		Lecturers     []int64 `json:"lecturers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	chat, err := a.svc.CreateCourseChat(ctx, middleware.UserID(c), req.Name, req.Avatar, req.CourseSection, req.Members, req.Lecturers)
	if err != nil {
		a.log.Errorw("create course chat failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}
	c.JSON(http.StatusCreated, chat)
}

// SetMuted toggles the caller's own mute flag for a chat.
func (a *API) SetMuted(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Muted *bool `json:"muted" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := a.chats.SetMuted(ctx, chatID, middleware.UserID(c), *req.Muted)
	if errors.Is(err, store.ErrNotMember) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this chat"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update mute flag"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": *req.Muted})
}

// AddMembers extends a group roster (admin only). Users already present are
// skipped.
func (a *API) AddMembers(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Members []int64 `json:"members" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	members := make([]models.Member, 0, len(req.Members))
	for _, id := range req.Members {
		p, err := a.users.GetProfile(ctx, id)
		if err != nil {
			a.log.Warnw("skipping unknown user", "userId", id, "err", err)
			continue
		}
		members = append(members, models.Member{
			UserID:   p.UserID,
			UserName: p.Name,
			Avatar:   p.Avatar,
			Email:    p.Email,
			Phone:    p.Phone,
			Role:     models.RoleMember,
		})
	}

	err := a.chats.AddMembers(ctx, chatID, middleware.UserID(c), members)
	if errors.Is(err, store.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": len(members)})
}

func (a *API) RemoveMember(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := a.chats.RemoveMember(ctx, chatID, middleware.UserID(c), req.UserID)
	if errors.Is(err, store.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": req.UserID})
}

func (a *API) RenameChat(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := a.chats.Rename(ctx, chatID, middleware.UserID(c), req.Name)
	if errors.Is(err, store.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name})
}
