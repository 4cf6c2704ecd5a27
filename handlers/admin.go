package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// PurgeUser is the inactive-account sweep: private chats with the user are
// deleted, group rosters drop them.
func (a *API) PurgeUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	deleted, updated, err := a.svc.PurgeUser(ctx, userID)
	if err != nil {
		a.log.Errorw("user purge failed", "userId", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purge failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatsDeleted": deleted, "rostersUpdated": updated})
}

// DeleteCourseChats is the course-completion sweep.
func (a *API) DeleteCourseChats(c *gin.Context) {
	section, err := strconv.ParseInt(c.Param("sectionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sectionId"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	deleted, err := a.svc.DeleteCourseChats(ctx, section)
	if err != nil {
		a.log.Errorw("course chat sweep failed", "section", section, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatsDeleted": deleted})
}
