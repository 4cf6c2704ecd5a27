package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gin-gonic/gin"

	"campushub/directory"
	"campushub/middleware"
	"campushub/models"
)

func (a *API) GetMyProfile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	profile, err := a.users.GetProfile(ctx, middleware.UserID(c))
	if errors.Is(err, directory.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch profile"})
		return
	}
	if profile.Avatar == "" {
		profile.Avatar = fallbackAvatar
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMyProfile writes the relational profile and relays the change into
// every chat roster containing the caller. The relay is best-effort; the
// response reflects only the primary write.
func (a *API) UpdateMyProfile(c *gin.Context) {
	var req models.ProfileChanges
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	profile, err := a.svc.UpdateProfile(ctx, middleware.UserID(c), req)
	if errors.Is(err, directory.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		a.log.Errorw("profile update failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UploadAvatar stores the image with cloudinary, then routes the new URL
// through the same update-and-relay path as any other profile change.
func (a *API) UploadAvatar(c *gin.Context) {
	if a.cld == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads not configured"})
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	resp, err := a.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: "campushub/avatars",
	})
	if err != nil {
		a.log.Errorw("avatar upload failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	profile, err := a.svc.UpdateProfile(ctx, middleware.UserID(c), models.ProfileChanges{
		Avatar: &resp.SecureURL,
	})
	if err != nil {
		a.log.Errorw("avatar profile update failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save avatar"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": profile.Avatar})
}
