package storage

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MemoryCache is an in-process SnapshotCache used when Redis is not configured.
type MemoryCache struct {
	carts *expirable.LRU[string, domain.Cart]
	favs  *expirable.LRU[string, domain.Favorites]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		carts: expirable.NewLRU[string, domain.Cart](size, nil, ttl),
		favs:  expirable.NewLRU[string, domain.Favorites](size, nil, ttl),
	}
}

func (m *MemoryCache) SaveCart(ctx context.Context, userID string, cart domain.Cart) error {
	if cur, ok := m.carts.Peek(userID); ok && cur.FetchedAt.After(cart.FetchedAt) {
		return nil
	}
	m.carts.Add(userID, cart.Clone())
	return nil
}

func (m *MemoryCache) LoadCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, ok := m.carts.Get(userID)
	if !ok {
		return domain.Cart{}, port.ErrSnapshotMiss
	}
	return cart.Clone(), nil
}

func (m *MemoryCache) SaveFavorites(ctx context.Context, userID string, favs domain.Favorites) error {
	if cur, ok := m.favs.Peek(userID); ok && cur.FetchedAt.After(favs.FetchedAt) {
		return nil
	}
	m.favs.Add(userID, favs.Clone())
	return nil
}

func (m *MemoryCache) LoadFavorites(ctx context.Context, userID string) (domain.Favorites, error) {
	favs, ok := m.favs.Get(userID)
	if !ok {
		return domain.Favorites{}, port.ErrSnapshotMiss
	}
	return favs.Clone(), nil
}

func (m *MemoryCache) Drop(ctx context.Context, userID string) error {
	m.carts.Remove(userID)
	m.favs.Remove(userID)
	return nil
}

// MemorySessionStore keeps the session for the lifetime of the process.
type MemorySessionStore struct {
	mu   sync.RWMutex
	sess *domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Load(ctx context.Context) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return domain.Session{}, port.ErrNoSession
	}
	return *m.sess, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	m.sess = &s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()
	return nil
}
