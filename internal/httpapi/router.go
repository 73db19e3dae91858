package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/httpapi/handlers"
	"github.com/quillchat/quillchat/internal/httpapi/middleware"
	"github.com/quillchat/quillchat/internal/identity"
)

func NewRouter(h *handlers.Handler, verifier identity.Verifier, logger *zap.Logger, promReg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(verifier))
	authGroup.POST("/chat", h.ChatProxy)
	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.GET("/chat/sessions/:session_id", h.GetChatSession)
	authGroup.POST("/search", h.WebSearch)
	authGroup.POST("/upload", h.Upload)

	return r
}
