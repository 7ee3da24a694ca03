package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/identity"
)

// NewServer builds the HTTP server with WebSocket and REST routes.
func NewServer(hub *core.Hub, resolver identity.Resolver, jwtCfg *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, resolver, jwtCfg, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine.
func NewRouter(hub *core.Hub, resolver identity.Resolver, jwtCfg *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	authMW := AuthMiddleware(jwtCfg, logger)

	ws := NewWSHandler(hub, WSOptions{
		QueueSize:         cfg.SendQueueSize,
		MaxMessageBytes:   int64(cfg.MaxMessageBytes),
		MessagesPerMinute: cfg.MessagesPerMinute,
	}, logger)
	router.GET("/ws", authMW, ws.Handle)

	rooms := NewRoomHandlers(hub, logger)
	users := NewUserHandlers(resolver, logger)

	api := router.Group("/api", authMW)
	api.GET("/me", users.Me)
	api.GET("/rooms", rooms.ListRooms)
	api.POST("/rooms", rooms.CreateRoom)
	api.GET("/rooms/one-to-one", rooms.OneToOneRooms)
	api.GET("/rooms/:id/messages", rooms.ListMessages)
	api.GET("/rooms/:id/members", rooms.ListMembers)
	api.PUT("/rooms/:id/name", rooms.RenameRoom)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
