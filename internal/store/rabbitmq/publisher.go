package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// TurnEvent describes one completed chat exchange. Consumers maintain
// per-user usage stats from these; nothing on the request path reads them.
type TurnEvent struct {
	SessionID string `json:"session_id"`
	MessageID uint64 `json:"message_id"`
	UserID    uint64 `json:"user_id"`
	Model     string `json:"model"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Partial   bool   `json:"partial"`
}

// Publisher emits turn events after finalization. Delivery is best-effort
// from the request's point of view: the client already has its answer by the
// time anything is published.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewPublisher dials the broker and declares the full topology: the main
// queue dead-letters to <queue>.dlq, and <queue>.retry dead-letters back to
// the main queue so delayed redelivery works without a plugin.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func declareTopology(ch *amqp.Channel, queue string) error {
	queues := []struct {
		name string
		args amqp.Table
	}{
		{queue + ".dlq", nil},
		{queue + ".retry", amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		}},
		{queue, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue + ".dlq",
		}},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare %s: %w", q.name, err)
		}
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishTurn sends one persistent event to the main queue via the default
// exchange.
func (p *Publisher) PublishTurn(ctx context.Context, ev TurnEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(cctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}
