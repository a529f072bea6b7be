package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/opendeepwiki/ragchat/config"
	"github.com/opendeepwiki/ragchat/internal/handler"
)

func Setup(
	cfg *config.Config,
	sessionHandler *handler.SessionHandler,
	documentHandler *handler.DocumentHandler,
	chatHandler *handler.ChatHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	// SSE 需要逐条刷新，不做压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/chat/stream$`})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.Create)
			sessions.GET("", sessionHandler.List)
			sessions.GET("/:id", sessionHandler.Get)
			sessions.GET("/:id/messages", sessionHandler.Messages)
			sessions.DELETE("/:id", sessionHandler.Delete)
			sessions.POST("/:id/reset", sessionHandler.Reset)
			sessions.POST("/:id/documents", documentHandler.Upload)
			sessions.POST("/:id/chat", chatHandler.Chat)
			sessions.POST("/:id/chat/stream", chatHandler.Stream)
		}
	}

	return r
}
