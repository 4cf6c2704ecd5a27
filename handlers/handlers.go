package handlers

import (
	"net/http"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"campushub/directory"
	"campushub/service"
	"campushub/store"
)

const fallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

// API bundles the chat core's REST surface.
type API struct {
	svc      *service.ChatService
	chats    *store.ChatStore
	messages *store.MessageStore
	tokens   *store.TokenStore
	users    directory.UserDirectory
	cld      *cloudinary.Cloudinary
	log      *zap.SugaredLogger
}

func NewAPI(
	svc *service.ChatService,
	chats *store.ChatStore,
	messages *store.MessageStore,
	tokens *store.TokenStore,
	users directory.UserDirectory,
	cld *cloudinary.Cloudinary,
	log *zap.SugaredLogger,
) *API {
	return &API{
		svc:      svc,
		chats:    chats,
		messages: messages,
		tokens:   tokens,
		users:    users,
		cld:      cld,
		log:      log,
	}
}

// objectIDParam parses a hex ObjectID path parameter, answering 400 itself
// on failure.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}
