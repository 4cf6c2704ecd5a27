package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campushub/middleware"
	"campushub/models"
)

// RegisterToken upserts a device token for the caller. Registering the same
// token twice — including two devices racing — is a success with dedup set.
func (a *API) RegisterToken(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Platform != models.PlatformAndroid && req.Platform != models.PlatformIOS {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform must be android or ios"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dedup, err := a.tokens.Upsert(ctx, middleware.UserID(c), req.Token, req.Platform)
	if err != nil {
		a.log.Errorw("token upsert failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dedup": dedup})
}

func (a *API) RemoveToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := a.tokens.Remove(ctx, middleware.UserID(c), req.Token); err != nil {
		a.log.Errorw("token remove failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}
