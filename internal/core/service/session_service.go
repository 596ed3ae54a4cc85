package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// SessionService stores the token the backend issued at login. Authentication
// itself happens on the backend.
type SessionService struct {
	store     port.SessionStore
	cache     port.SnapshotCache
	cart      *CartService
	favorites *FavoritesService
	logger    *zap.Logger
}

func NewSessionService(store port.SessionStore, cache port.SnapshotCache, cart *CartService, favorites *FavoritesService, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:     store,
		cache:     cache,
		cart:      cart,
		favorites: favorites,
		logger:    logger.Named("session"),
	}
}

func (s *SessionService) Current(ctx context.Context) (domain.Session, error) {
	return currentSession(ctx, s.store)
}

func (s *SessionService) SignIn(ctx context.Context, token string, user domain.User) (domain.Session, error) {
	sess := domain.Session{Token: strings.TrimSpace(token), User: user}
	if !sess.Valid() {
		return domain.Session{}, fmt.Errorf("sign in: token and user id are required")
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("sign in: %w", err)
	}
	s.cart.Reset()
	s.favorites.Reset()

	s.logger.Info("signed in", zap.String("user_id", user.ID))
	return sess, nil
}

// SignOut forgets the session and both aggregates, including their cached snapshots.
func (s *SessionService) SignOut(ctx context.Context) error {
	sess, err := s.Current(ctx)
	if err == nil && s.cache != nil {
		if err := s.cache.Drop(ctx, sess.User.ID); err != nil {
			s.logger.Warn("failed to drop cached snapshots", zap.String("user_id", sess.User.ID), zap.Error(err))
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.cart.Reset()
	s.favorites.Reset()

	s.logger.Info("signed out")
	return nil
}
