// Package events publishes order lifecycle events to Kafka. Publishing is
// fire-and-report, exactly like the confirmation email: a broker outage
// never affects the committed order.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"emporia/internal/shop/models"
)

// OrderPlacedEvent is the wire shape for downstream consumers (dispatch,
// reporting).
type OrderPlacedEvent struct {
	OrderID   int64     `json:"order_id"`
	Email     string    `json:"email"`
	ItemCount int       `json:"item_count"`
	Postage   string    `json:"postage"`
	PlacedAt  time.Time `json:"placed_at"`
}

// Publisher emits events to a Kafka topic. A nil Publisher is valid and
// publishes nothing, so wiring stays unconditional.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the brokers. Returns (nil, nil) when brokers is
// empty: event publishing is optional.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// OrderPlaced publishes asynchronously; delivery failures are logged, never
// returned.
func (p *Publisher) OrderPlaced(ctx context.Context, order *models.Order) {
	if p == nil {
		return
	}
	event := OrderPlacedEvent{
		OrderID:   order.ID,
		Email:     order.Email,
		ItemCount: len(order.Basket.Items),
		Postage:   order.Postage.String(),
		PlacedAt:  order.CreatedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal order event", "order_id", order.ID, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(order.ID, 10)),
		Value: value,
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("publish order event", "order_id", event.OrderID, "error", err)
		}
	})
}

// Close flushes and shuts down the client.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
