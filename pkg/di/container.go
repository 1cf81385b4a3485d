package di

import (
	"context"
	"time"

	"gorm.io/gorm"

	"mimic-chat/backend/internal/api"
	"mimic-chat/backend/internal/autoreply"
	"mimic-chat/backend/internal/presence"
	"mimic-chat/backend/internal/service"
	"mimic-chat/backend/internal/suggest"
	"mimic-chat/backend/internal/ws"
	"mimic-chat/backend/pkg/config"
	"mimic-chat/backend/pkg/health"
	"mimic-chat/backend/pkg/logger"
	"mimic-chat/backend/pkg/resilience"
)

// Container holds all the dependencies for the application
type Container struct {
	DB             *gorm.DB
	Logger         *logger.Logger
	UserService    *service.UserService
	ChatService    *service.ChatService
	MessageService *service.MessageService
	Presence       *presence.Store
	SuggestClient  *suggest.Client
	Hub            *ws.Hub
	Responder      *autoreply.Responder
	Handlers       *api.Handlers
	Health         *health.Checker
}

// New wires the application graph. The hub is created first and the
// auto-reply responder attached afterwards, since each needs the other.
func New(db *gorm.DB, log *logger.Logger) (*Container, error) {
	cfg := config.Get()

	userService := service.NewUserService(db)
	chatService := service.NewChatService(db)
	messageService := service.NewMessageService(db)

	suggestClient := suggest.NewClient(log)

	hub := ws.NewHub(messageService, chatService, log)

	var pres *presence.Store
	if cfg.Features.EnablePresence {
		pres = presence.NewStore()
		hub.SetPresence(pres)
	}

	var responder *autoreply.Responder
	if cfg.Features.EnableAutoReply {
		responder = autoreply.New(hub, chatService, userService, messageService, suggestClient, cfg.Suggest.Window, log)
		hub.SetAutoReply(responder)
	}

	handlers := api.NewHandlers(userService, chatService, messageService, pres, suggestClient, log)

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if pres != nil {
		checker.RegisterRedisCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pres.Ping(ctx)
		})
	}
	checker.RegisterCheck("suggest", false, func() (health.Status, string, error) {
		if suggestClient.BreakerState() == resilience.StateOpen {
			return health.StatusDegraded, "suggestion upstream circuit open", nil
		}
		return health.StatusUp, "suggestion upstream reachable", nil
	})

	c := &Container{
		DB:             db,
		Logger:         log,
		UserService:    userService,
		ChatService:    chatService,
		MessageService: messageService,
		Presence:       pres,
		SuggestClient:  suggestClient,
		Hub:            hub,
		Responder:      responder,
		Handlers:       handlers,
		Health:         checker,
	}
	return c, nil
}
