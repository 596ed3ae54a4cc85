package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rl1809/storefront/internal/core/domain"
)

const OrderPlacedRoutingKey = "storefront.order.placed"

type OrderPlacedEvent struct {
	Event      string       `json:"event"`
	Order      domain.Order `json:"order"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// RabbitPublisher publishes order events to a topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *RabbitPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(OrderPlacedEvent{
		Event:      OrderPlacedRoutingKey,
		Order:      order,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx, r.exchange, OrderPlacedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.Reference,
		Timestamp:    order.PlacedAt,
		Body:         body,
	})
}

func (r *RabbitPublisher) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	return nil
}
