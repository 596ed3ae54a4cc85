package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CartService is the client-side mirror of the remote cart. Every mutation is
// followed by a full reload; the snapshot is never patched locally.
type CartService struct {
	gateway  port.CartGateway
	sessions port.SessionStore
	cache    port.SnapshotCache
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	cart    domain.Cart
	seq     uint64 // last issued reload number
	applied uint64 // reload number the snapshot came from
}

func NewCartService(gateway port.CartGateway, sessions port.SessionStore, cache port.SnapshotCache, logger *zap.Logger) *CartService {
	return &CartService{
		gateway:  gateway,
		sessions: sessions,
		cache:    cache,
		logger:   logger.Named("cart"),
		now:      time.Now,
	}
}

func (s *CartService) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

func (s *CartService) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ItemCount()
}

func (s *CartService) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Subtotal()
}

// Load fetches the whole cart from the server and replaces the snapshot with it.
// A failed fetch leaves the previous snapshot in place.
func (s *CartService) Load(ctx context.Context) (domain.Cart, error) {
	seq := s.nextSeq()

	sess, err := currentSession(ctx, s.sessions)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			s.apply(seq, domain.Cart{})
		}
		return domain.Cart{}, err
	}

	lines, err := s.gateway.ListCart(ctx)
	if err != nil {
		return s.Cart(), fmt.Errorf("load cart: %w", err)
	}

	cart := domain.Cart{Lines: lines, FetchedAt: s.now()}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	if !s.apply(seq, cart) {
		s.logger.Debug("discarded stale cart read", zap.Uint64("seq", seq))
		return s.Cart(), nil
	}

	if s.cache != nil {
		if err := s.cache.SaveCart(ctx, sess.User.ID, cart); err != nil {
			s.logger.Warn("failed to cache cart snapshot", zap.String("user_id", sess.User.ID), zap.Error(err))
		}
	}

	return cart.Clone(), nil
}

// Restore seeds the snapshot from the cache when no server read has landed yet.
func (s *CartService) Restore(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}

	sess, err := currentSession(ctx, s.sessions)
	if err != nil {
		return false, err
	}

	cart, err := s.cache.LoadCart(ctx, sess.User.ID)
	if errors.Is(err, port.ErrSnapshotMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied != 0 {
		return false, nil
	}
	s.cart = cart
	return true, nil
}

func (s *CartService) Add(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return s.Cart(), domain.ErrInvalidQuantity
	}
	if productID == "" {
		return s.Cart(), fmt.Errorf("add to cart: product id is required")
	}

	if err := s.gateway.AddLine(ctx, productID, quantity); err != nil {
		return s.Cart(), fmt.Errorf("add to cart: %w", err)
	}

	s.logger.Info("added to cart", zap.String("product_id", productID), zap.Int("quantity", quantity))
	return s.Load(ctx)
}

func (s *CartService) UpdateQuantity(ctx context.Context, lineID string, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return s.Cart(), domain.ErrInvalidQuantity
	}

	line, ok := s.Cart().Find(lineID)
	if !ok {
		return s.Cart(), domain.ErrLineNotFound
	}
	if line.Stock > 0 && quantity > line.Stock {
		return s.Cart(), domain.ErrInsufficientStock
	}

	if err := s.gateway.UpdateLine(ctx, lineID, quantity); err != nil {
		return s.Cart(), fmt.Errorf("update cart line: %w", err)
	}

	s.logger.Info("updated cart line", zap.String("line_id", lineID), zap.Int("quantity", quantity))
	return s.Load(ctx)
}

func (s *CartService) Remove(ctx context.Context, lineID string) (domain.Cart, error) {
	if err := s.gateway.RemoveLine(ctx, lineID); err != nil {
		return s.Cart(), fmt.Errorf("remove cart line: %w", err)
	}

	s.logger.Info("removed cart line", zap.String("line_id", lineID))
	return s.Load(ctx)
}

func (s *CartService) Clear(ctx context.Context) (domain.Cart, error) {
	if err := s.gateway.ClearCart(ctx); err != nil {
		return s.Cart(), fmt.Errorf("clear cart: %w", err)
	}

	s.logger.Info("cleared cart")
	return s.Load(ctx)
}

// Reset drops the snapshot, e.g. on sign-out.
func (s *CartService) Reset() {
	s.apply(s.nextSeq(), domain.Cart{})
}

func (s *CartService) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply installs cart unless a later reload has already been applied.
func (s *CartService) apply(seq uint64, cart domain.Cart) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return false
	}
	s.applied = seq
	s.cart = cart
	return true
}

func currentSession(ctx context.Context, sessions port.SessionStore) (domain.Session, error) {
	sess, err := sessions.Load(ctx)
	if errors.Is(err, port.ErrNoSession) {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.Valid() {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	return sess, nil
}
