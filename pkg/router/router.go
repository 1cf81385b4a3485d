package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mimic-chat/backend/internal/ws"
	"mimic-chat/backend/pkg/config"
	"mimic-chat/backend/pkg/di"
	"mimic-chat/backend/pkg/errors"
	"mimic-chat/backend/pkg/logger"
	"mimic-chat/backend/pkg/middleware"
	"mimic-chat/backend/pkg/validator"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Config    *config.Config
}

// New builds the engine with the middleware chain and starts the hub.
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := config.Get()
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOpts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(container.Logger, limiterOpts)
	engine.Use(rateLimiter.Middleware())

	go container.Hub.Run()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       container.Hub,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(cors.New(cors.Config{
		AllowOrigins:     r.Config.Security.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Schema validation is opt-in; without a schema file requests pass
	// straight to the handlers.
	if schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH"); schemaPath != "" {
		v, err := validator.NewOpenAPIValidator(schemaPath)
		if err != nil {
			r.Logger.LogError(err, "failed to load OpenAPI schema, requests will not be validated")
		} else {
			r.Engine.Use(v.Middleware())
		}
	}

	h := r.Container.Handlers

	api := r.Engine.Group("/api")
	{
		api.GET("/health", r.Container.Health.Handler())
		api.POST("/login", h.Login)
		api.GET("/users", h.ListUsers)
		api.GET("/chats/:userId", h.ListChats)
		api.POST("/chats", h.CreateChat)
		api.GET("/messages/:chatId", h.ListMessages)
		api.POST("/suggestions", h.Suggestions)
	}

	r.Engine.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(r.Hub, c)
	})

	if r.Config.Server.Env == "production" {
		r.serveStatic(r.Config.Features.StaticDir)
	}
}

// serveStatic serves the built frontend. Unknown non-API paths fall back to
// index.html so client-side routing works after a hard refresh.
func (r *Router) serveStatic(dir string) {
	if _, err := os.Stat(dir); err != nil {
		r.Logger.Warn("static directory missing, skipping frontend serving", "dir", dir)
		return
	}

	r.Engine.Static("/assets", filepath.Join(dir, "assets"))
	r.Engine.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))

	r.Engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") || strings.HasPrefix(c.Request.URL.Path, "/ws") {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
}
