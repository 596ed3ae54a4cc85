package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// FavoritesService mirrors the remote saved-products list the same way
// CartService mirrors the cart.
type FavoritesService struct {
	gateway  port.FavoritesGateway
	sessions port.SessionStore
	cache    port.SnapshotCache
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	favs    domain.Favorites
	seq     uint64
	applied uint64
}

func NewFavoritesService(gateway port.FavoritesGateway, sessions port.SessionStore, cache port.SnapshotCache, logger *zap.Logger) *FavoritesService {
	return &FavoritesService{
		gateway:  gateway,
		sessions: sessions,
		cache:    cache,
		logger:   logger.Named("favorites"),
		now:      time.Now,
	}
}

func (s *FavoritesService) Favorites() domain.Favorites {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favs.Clone()
}

func (s *FavoritesService) Contains(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favs.Contains(productID)
}

func (s *FavoritesService) Load(ctx context.Context) (domain.Favorites, error) {
	seq := s.nextSeq()

	sess, err := currentSession(ctx, s.sessions)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			s.apply(seq, domain.Favorites{})
		}
		return domain.Favorites{}, err
	}

	entries, err := s.gateway.ListFavorites(ctx)
	if err != nil {
		return s.Favorites(), fmt.Errorf("load favorites: %w", err)
	}

	favs := domain.Favorites{Entries: entries, FetchedAt: s.now()}
	if favs.Entries == nil {
		favs.Entries = []domain.FavoriteEntry{}
	}
	if !s.apply(seq, favs) {
		s.logger.Debug("discarded stale favorites read", zap.Uint64("seq", seq))
		return s.Favorites(), nil
	}

	if s.cache != nil {
		if err := s.cache.SaveFavorites(ctx, sess.User.ID, favs); err != nil {
			s.logger.Warn("failed to cache favorites snapshot", zap.String("user_id", sess.User.ID), zap.Error(err))
		}
	}

	return favs.Clone(), nil
}

func (s *FavoritesService) Restore(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}

	sess, err := currentSession(ctx, s.sessions)
	if err != nil {
		return false, err
	}

	favs, err := s.cache.LoadFavorites(ctx, sess.User.ID)
	if errors.Is(err, port.ErrSnapshotMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore favorites: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied != 0 {
		return false, nil
	}
	s.favs = favs
	return true, nil
}

// Add saves productID. A product already in the snapshot is not sent again.
func (s *FavoritesService) Add(ctx context.Context, productID string) (domain.Favorites, error) {
	if productID == "" {
		return s.Favorites(), fmt.Errorf("add favorite: product id is required")
	}
	if s.Contains(productID) {
		return s.Favorites(), nil
	}

	if err := s.gateway.AddFavorite(ctx, productID); err != nil {
		return s.Favorites(), fmt.Errorf("add favorite: %w", err)
	}

	s.logger.Info("added favorite", zap.String("product_id", productID))
	return s.Load(ctx)
}

func (s *FavoritesService) Remove(ctx context.Context, favoriteID string) (domain.Favorites, error) {
	if err := s.gateway.RemoveFavorite(ctx, favoriteID); err != nil {
		return s.Favorites(), fmt.Errorf("remove favorite: %w", err)
	}

	s.logger.Info("removed favorite", zap.String("favorite_id", favoriteID))
	return s.Load(ctx)
}

// Toggle removes productID when it is saved and saves it otherwise.
func (s *FavoritesService) Toggle(ctx context.Context, productID string) (bool, domain.Favorites, error) {
	entry, ok := s.Favorites().Find(productID)
	if ok {
		favs, err := s.Remove(ctx, entry.FavoriteID)
		return false, favs, err
	}
	favs, err := s.Add(ctx, productID)
	return err == nil, favs, err
}

// ClearAll deletes every saved product one at a time; the remote service has no
// bulk delete. Failures do not stop the loop and are returned joined.
func (s *FavoritesService) ClearAll(ctx context.Context) (domain.Favorites, error) {
	var errs []error
	removed := 0
	for _, e := range s.Favorites().Entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.gateway.RemoveFavorite(ctx, e.FavoriteID); err != nil {
			s.logger.Warn("failed to remove favorite", zap.String("favorite_id", e.FavoriteID), zap.Error(err))
			errs = append(errs, fmt.Errorf("remove favorite %s: %w", e.FavoriteID, err))
			continue
		}
		removed++
	}

	s.logger.Info("cleared favorites", zap.Int("removed", removed), zap.Int("failed", len(errs)))

	favs, err := s.Load(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	return favs, errors.Join(errs...)
}

func (s *FavoritesService) Reset() {
	s.apply(s.nextSeq(), domain.Favorites{})
}

func (s *FavoritesService) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *FavoritesService) apply(seq uint64, favs domain.Favorites) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	s.favs = favs
	return true
}
