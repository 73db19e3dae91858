package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/ai"
	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/config"
	"github.com/quillchat/quillchat/internal/db"
	"github.com/quillchat/quillchat/internal/httpapi"
	"github.com/quillchat/quillchat/internal/httpapi/handlers"
	"github.com/quillchat/quillchat/internal/identity"
	"github.com/quillchat/quillchat/internal/logging"
	"github.com/quillchat/quillchat/internal/metrics"
	"github.com/quillchat/quillchat/internal/store/rabbitmq"
	"github.com/quillchat/quillchat/internal/store/redisstore"
)

func main() {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, turn locks disabled", zap.Error(err))
		rds = nil
	}
	cancel()

	var pub *rabbitmq.Publisher
	pub, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		logger.Warn("rabbitmq unavailable, turn events disabled", zap.Error(err))
		pub = nil
	} else {
		defer pub.Close()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(promReg)

	repo := chat.NewRepo(gdb)
	svc := chat.NewService(repo, logger)
	reg := ai.NewRegistry(cfg)
	verifier := identity.NewJWTVerifier(cfg.JWTSecret)

	h := handlers.NewHandler(cfg, logger, svc, reg, rds, pub, m)
	r := httpapi.NewRouter(h, verifier, logger, promReg)

	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
