package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type product struct {
	name  string
	price decimal.Decimal
	stock int
}

// mockBackend plays the remote service for cart, favorites and orders.
type mockBackend struct {
	mu sync.Mutex

	products  map[string]product
	lines     []domain.CartLine
	favorites []domain.FavoriteEntry
	nextID    int

	listErr      error
	mutateErr    error
	removeFavErr map[string]error
	orderErrs    map[string]error
	onOrder      func(endpoint string)
	orderSubs    []string
	submissions  []domain.OrderSubmission
	listCalls    int
	favListCalls int
	clearCalls   int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		products: map[string]product{
			"p-1": {name: "Zapatos", price: decimal.RequireFromString("499.90"), stock: 5},
			"p-2": {name: "Gorra", price: decimal.RequireFromString("150.00"), stock: 0},
			"p-3": {name: "Camisa", price: decimal.RequireFromString("10.05"), stock: 10},
		},
		removeFavErr: map[string]error{},
		orderErrs:    map[string]error{},
	}
}

func (m *mockBackend) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockBackend) ListCart(ctx context.Context) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.CartLine, len(m.lines))
	copy(out, m.lines)
	return out, nil
}

func (m *mockBackend) AddLine(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mutateErr != nil {
		return m.mutateErr
	}
	p, ok := m.products[productID]
	if !ok {
		return errors.New("unknown product")
	}
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			m.lines[i].Quantity += quantity
			return nil
		}
	}
	m.lines = append(m.lines, domain.CartLine{
		LineID:    m.id("line"),
		ProductID: productID,
		Name:      p.name,
		UnitPrice: p.price,
		Quantity:  quantity,
		Stock:     p.stock,
	})
	return nil
}

func (m *mockBackend) UpdateLine(ctx context.Context, lineID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mutateErr != nil {
		return m.mutateErr
	}
	for i := range m.lines {
		if m.lines[i].LineID == lineID {
			m.lines[i].Quantity = quantity
			return nil
		}
	}
	return domain.ErrLineNotFound
}

func (m *mockBackend) RemoveLine(ctx context.Context, lineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mutateErr != nil {
		return m.mutateErr
	}
	for i := range m.lines {
		if m.lines[i].LineID == lineID {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrLineNotFound
}

func (m *mockBackend) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.mutateErr != nil {
		return m.mutateErr
	}
	m.lines = nil
	return nil
}

func (m *mockBackend) ListFavorites(ctx context.Context) ([]domain.FavoriteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favListCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.FavoriteEntry, len(m.favorites))
	copy(out, m.favorites)
	return out, nil
}

func (m *mockBackend) AddFavorite(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mutateErr != nil {
		return m.mutateErr
	}
	p := m.products[productID]
	m.favorites = append(m.favorites, domain.FavoriteEntry{
		FavoriteID: m.id("fav"),
		ProductID:  productID,
		Name:       p.name,
		UnitPrice:  p.price,
	})
	return nil
}

func (m *mockBackend) RemoveFavorite(ctx context.Context, favoriteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.removeFavErr[favoriteID]; err != nil {
		return err
	}
	for i := range m.favorites {
		if m.favorites[i].FavoriteID == favoriteID {
			m.favorites = append(m.favorites[:i], m.favorites[i+1:]...)
			return nil
		}
	}
	return domain.ErrFavoriteNotFound
}

func (m *mockBackend) CreateOrder(ctx context.Context, endpoint string, sub domain.OrderSubmission) (domain.OrderReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderSubs = append(m.orderSubs, endpoint)
	if m.onOrder != nil {
		m.onOrder(endpoint)
	}
	if err := ctx.Err(); err != nil {
		return domain.OrderReceipt{}, err
	}
	if err := m.orderErrs[endpoint]; err != nil {
		return domain.OrderReceipt{}, err
	}
	m.submissions = append(m.submissions, sub)
	return domain.OrderReceipt{ID: m.id("order"), Status: domain.OrderStatusConfirmed}, nil
}

type memSessions struct {
	mu   sync.Mutex
	sess *domain.Session
}

func signedIn() *memSessions {
	return &memSessions{sess: &domain.Session{Token: "tok", User: domain.User{ID: "u-1", Name: "Ana"}}}
}

func (m *memSessions) Load(ctx context.Context) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return domain.Session{}, port.ErrNoSession
	}
	return *m.sess, nil
}

func (m *memSessions) Save(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &s
	return nil
}

func (m *memSessions) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

type memSnapshots struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
	favs  map[string]domain.Favorites
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{carts: map[string]domain.Cart{}, favs: map[string]domain.Favorites{}}
}

func (m *memSnapshots) SaveCart(ctx context.Context, userID string, cart domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = cart.Clone()
	return nil
}

func (m *memSnapshots) LoadCart(ctx context.Context, userID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return domain.Cart{}, port.ErrSnapshotMiss
	}
	return c.Clone(), nil
}

func (m *memSnapshots) SaveFavorites(ctx context.Context, userID string, favs domain.Favorites) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favs[userID] = favs.Clone()
	return nil
}

func (m *memSnapshots) LoadFavorites(ctx context.Context, userID string) (domain.Favorites, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.favs[userID]
	if !ok {
		return domain.Favorites{}, port.ErrSnapshotMiss
	}
	return f.Clone(), nil
}

func (m *memSnapshots) Drop(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	delete(m.favs, userID)
	return nil
}
