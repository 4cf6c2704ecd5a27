package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"campushub/handlers"
	"campushub/middleware"
)

func SetupRouter(api *handlers.API, jwtSecret string) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.RateLimit(120, time.Minute))
	apiGroup.Use(middleware.JWTAuth(jwtSecret))

	// profile (triggers the roster sync relay)
	apiGroup.GET("/me", api.GetMyProfile)
	apiGroup.PUT("/me", api.UpdateMyProfile)
	apiGroup.POST("/me/avatar", api.UploadAvatar)

	// chats
	apiGroup.GET("/chats", api.ListChats)
	apiGroup.POST("/chats", api.CreatePrivateChat)
	apiGroup.GET("/chats/:id", api.GetChat)
	apiGroup.PUT("/chats/:id/mute", api.SetMuted)
	apiGroup.POST("/chats/:id/read", api.MarkRead)

	// messages
	apiGroup.POST("/chats/:id/messages", api.SendMessage)
	apiGroup.GET("/chats/:id/messages", api.GetMessages)
	apiGroup.DELETE("/chats/:id/messages/:messageId", api.DeleteMessage)
	apiGroup.POST("/chats/:id/messages/:messageId/pin", api.PinMessage)
	apiGroup.DELETE("/chats/:id/messages/:messageId/pin", api.UnpinMessage)

	// push tokens
	apiGroup.POST("/push/register-token", api.RegisterToken)
	apiGroup.POST("/push/remove-token", api.RemoveToken)

	// administrative surface
	admin := apiGroup.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.POST("/chats/course", api.CreateCourseChat)
	admin.POST("/chats/:id/members", api.AddMembers)
	admin.DELETE("/chats/:id/members", api.RemoveMember)
	admin.PUT("/chats/:id/name", api.RenameChat)
	admin.DELETE("/chats/course/:sectionId", api.DeleteCourseChats)
	admin.DELETE("/users/:userId", api.PurgeUser)

	return router
}
