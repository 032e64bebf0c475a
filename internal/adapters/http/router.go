package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/adapters/signal"
	"github.com/dkeye/Sketch/internal/auth"
	"github.com/dkeye/Sketch/internal/config"
)

// AuthMiddleware is the connection gate for HTTP and WS alike: no verified
// identity, no access. WS clients pass the token as a query parameter
// since browsers cannot set headers on an upgrade request.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			token = c.Query("token")
		}

		user, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, verifier *auth.Verifier, ctl *signal.Controller, store RoomStore) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	log.Info().Str("module", "adapters.http").Msg("router setup")

	h := &RoomHandlers{Store: store, Rooms: ctl}

	api := r.Group("/api", AuthMiddleware(verifier))

	api.GET("/rooms", h.List)
	api.POST("/rooms", h.Create)
	api.GET("/rooms/:roomId", h.Get)
	api.GET("/rooms/:roomId/players", h.Players)
	api.GET("/leaderboard", h.Leaderboard)

	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}
