package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"campushub/config"
	"campushub/database"
	"campushub/directory"
	"campushub/dispatch"
	"campushub/handlers"
	"campushub/logger"
	"campushub/push"
	"campushub/routes"
	"campushub/service"
	"campushub/store"
	"campushub/websocket"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Env != "production")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.JWTSecret == "" {
		log.Fatal("CAMPUSHUB_JWT_SECRET must be set")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// mongo holds chats, messages and device tokens; connect with retry
	var dbErr error
	for i := 1; i <= 3; i++ {
		if dbErr = database.ConnectMongo(cfg.MongoURI, cfg.MongoDB); dbErr != nil {
			log.Warnw("mongo connection attempt failed", "attempt", i, "err", dbErr)
			time.Sleep(2 * time.Second)
			continue
		}
		break
	}
	if dbErr != nil {
		log.Fatalw("could not connect to mongo", "err", dbErr)
	}
	defer database.DisconnectMongo()
	log.Info("mongo connected")

	// postgres holds the user profiles the rosters denormalize
	pg, err := database.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalw("could not connect to postgres", "err", err)
	}
	defer pg.Close()
	log.Info("postgres connected")

	chats := store.NewChatStore(database.Chats, log)
	messages := store.NewMessageStore(database.Messages, log)
	tokens := store.NewTokenStore(database.DeviceTokens, log)
	users := directory.New(pg)

	ctx := context.Background()
	notifier, err := push.NewNotifier(ctx, cfg.FirebaseCredentialsFile, tokens, log)
	if err != nil {
		log.Fatalw("push gateway init failed", "err", err)
	}

	manager := websocket.NewManager(chats, log)
	go manager.Start()

	throttle := dispatch.NewThrottle(cfg.PushCooldown)
	dispatcher := dispatch.NewDispatcher(chats, manager, notifier, throttle, log)

	svc := service.NewChatService(chats, messages, users, dispatcher, manager, log)
	manager.SetChatService(svc)

	var cld *cloudinary.Cloudinary
	if cfg.CloudinaryURL != "" {
		cld, err = cloudinary.NewFromURL(cfg.CloudinaryURL)
		if err != nil {
			log.Warnw("cloudinary init failed, uploads disabled", "err", err)
			cld = nil
		}
	}

	api := handlers.NewAPI(svc, chats, messages, tokens, users, cld, log)
	router := routes.SetupRouter(api, cfg.JWTSecret)

	router.GET("/ws", func(c *gin.Context) {
		websocket.Handler(manager, cfg.JWTSecret)(c.Writer, c.Request)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("forced shutdown", "err", err)
	}
	log.Info("server stopped")
}
