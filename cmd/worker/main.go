package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/config"
	"github.com/quillchat/quillchat/internal/db"
	"github.com/quillchat/quillchat/internal/logging"
	"github.com/quillchat/quillchat/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// The worker drains turn events published after finalization and maintains
// per-user usage stats off the request path.
func main() {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	// Same arguments as the publisher side, or the declare is rejected.
	if _, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		logger.Fatal("queue declare", zap.Error(err))
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency))

	events := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range events {
				var ev rabbitmq.TurnEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.UserID == 0 {
					logger.Warn("bad turn event", zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				if err := handleTurnEvent(ctx, repo, ev); err != nil {
					logger.Error("turn event failed",
						zap.Int("worker", workerID),
						zap.String("session_id", ev.SessionID),
						zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.Warn("ack failed", zap.Int("worker", workerID), zap.Error(err))
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(events)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			events <- d
		}
	}
}

func handleTurnEvent(ctx context.Context, repo *chat.Repo, ev rabbitmq.TurnEvent) error {
	if err := repo.IncrementUserTurns(ctx, ev.UserID); err != nil {
		return err
	}
	return repo.TouchUserChat(ctx, ev.UserID)
}
