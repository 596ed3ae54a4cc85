package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CartGateway is the remote service's cart API. The service is the only source
// of truth; callers reload after every mutation.
type CartGateway interface {
	ListCart(ctx context.Context) ([]domain.CartLine, error)
	AddLine(ctx context.Context, productID string, quantity int) error
	UpdateLine(ctx context.Context, lineID string, quantity int) error
	RemoveLine(ctx context.Context, lineID string) error
	ClearCart(ctx context.Context) error
}

type FavoritesGateway interface {
	ListFavorites(ctx context.Context) ([]domain.FavoriteEntry, error)
	AddFavorite(ctx context.Context, productID string) error
	RemoveFavorite(ctx context.Context, favoriteID string) error
}

type OrderGateway interface {
	// CreateOrder posts the submission to a single candidate endpoint.
	CreateOrder(ctx context.Context, endpoint string, sub domain.OrderSubmission) (domain.OrderReceipt, error)
}
