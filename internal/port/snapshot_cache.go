package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

var ErrSnapshotMiss = errors.New("snapshot not cached")

// SnapshotCache keeps the last successful server read of each aggregate so a
// restarted client can show it before the first reload completes.
type SnapshotCache interface {
	SaveCart(ctx context.Context, userID string, cart domain.Cart) error
	LoadCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveFavorites(ctx context.Context, userID string, favs domain.Favorites) error
	LoadFavorites(ctx context.Context, userID string) (domain.Favorites, error)
	Drop(ctx context.Context, userID string) error
}
