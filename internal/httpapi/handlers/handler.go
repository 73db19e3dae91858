package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/ai"
	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/config"
	"github.com/quillchat/quillchat/internal/metrics"
	"github.com/quillchat/quillchat/internal/search"
	"github.com/quillchat/quillchat/internal/store/rabbitmq"
	"github.com/quillchat/quillchat/internal/store/redisstore"
)

// Handler owns every dependency of the HTTP layer. Redis and Rabbit may be
// nil (tests, degraded deployments); their features turn off, nothing else
// changes.
type Handler struct {
	Cfg        config.Config
	Logger     *zap.Logger
	ChatSvc    *chat.Service
	Registry   *ai.Registry
	Dispatcher *ai.Dispatcher
	Search     *search.Client
	Redis      *redisstore.Store
	Rabbit     *rabbitmq.Publisher
	Metrics    *metrics.Metrics
}

func NewHandler(cfg config.Config, logger *zap.Logger, svc *chat.Service, reg *ai.Registry, rds *redisstore.Store, pub *rabbitmq.Publisher, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Cfg:        cfg,
		Logger:     logger,
		ChatSvc:    svc,
		Registry:   reg,
		Dispatcher: ai.NewDispatcher(),
		Search:     search.NewClient(cfg.TavilyBaseURL, cfg.TavilyAPIKey),
		Redis:      rds,
		Rabbit:     pub,
		Metrics:    m,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
