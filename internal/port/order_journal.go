package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderJournal interface {
	// RecordOrder stores a placed order; recording the same order twice is a no-op
	RecordOrder(ctx context.Context, order domain.Order) error

	// ListOrders returns the user's most recent orders, newest first
	ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error)
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}
