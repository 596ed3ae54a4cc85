package tests

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/remote"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	store   *storage.RedisAdapter
	journal *storage.MySQLAdapter
	backend *backend
	client  *remote.Client
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := storage.OpenMySQL(mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	journal := storage.NewMySQLAdapter(db)
	require.NoError(t, journal.EnsureSchema(context.Background()))

	be := &backend{token: "tok-" + uuid.NewString()}
	srv := httptest.NewServer(be.router())

	// A fresh profile per test keeps session keys apart.
	store := storage.NewRedisAdapter(rdb, uuid.NewString(), time.Hour)

	return &testEnv{
		redis:   rdb,
		mysql:   db,
		store:   store,
		journal: journal,
		backend: be,
		client:  remote.NewClient(srv.URL+"/api", 5*time.Second, store, zap.NewNop()),
		cleanup: func() {
			srv.Close()
			rdb.Close()
			db.Close()
		},
	}
}

// backend fakes the storefront service. Only /pedidos accepts orders.
type backend struct {
	token string

	mu     sync.Mutex
	nextID int
	lines  []map[string]any
	orders int
}

func (b *backend) router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+b.token {
				http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	api.HandleFunc("/cart", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": b.lines})
	}).Methods(http.MethodGet)

	api.HandleFunc("/cart", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.nextID++
		b.lines = append(b.lines, map[string]any{
			"id":       b.nextID,
			"quantity": body.Quantity,
			"product":  map[string]any{"id": body.ProductID, "name": "Camisa", "price": "249.95", "stock": 8},
		})
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	api.HandleFunc("/cart", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.lines = nil
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	api.HandleFunc("/pedidos", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.orders++
		writeJSON(w, http.StatusCreated, map[string]any{"order": map[string]any{"id": "ord-" + strconv.Itoa(b.orders), "status": "pending"}})
	}).Methods(http.MethodPost)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestIntegration_CheckoutFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	userID := "it-" + uuid.NewString()

	cart := service.NewCartService(env.client, env.store, env.store, logger)
	favorites := service.NewFavoritesService(env.client, env.store, env.store, logger)
	sessions := service.NewSessionService(env.store, env.store, cart, favorites, logger)
	checkout := service.NewCheckoutService(cart, env.client, env.store, service.CheckoutConfig{
		TaxRate:     decimal.RequireFromString("0.16"),
		ShippingFee: decimal.RequireFromString("25"),
		Endpoints:   []string{"/orders", "/checkout", "/pedidos"},
		QueueSize:   10,
	}, logger)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, checkout.GetOrderQueue(), env.journal)
		}(i)
	}

	_, err := sessions.SignIn(ctx, env.backend.token, domain.User{ID: userID, Name: "Integration"})
	require.NoError(t, err)

	c, err := cart.Add(ctx, "p-10", 3)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "749.85", c.Subtotal().StringFixed(2))

	cached, err := env.store.LoadCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, cached.ItemCount())

	order, err := checkout.Checkout(ctx, domain.CheckoutRequest{
		Method:  domain.PaymentMethodCard,
		Card:    domain.CardDetails{Holder: "Ana Perez", Number: "4111 1111 1111 1111", Expiry: "12/99", CVV: "123"},
		Address: domain.ShippingAddress{Recipient: "Ana Perez", Street: "Av. Reforma 10", City: "CDMX"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, "/pedidos", order.Endpoint)
	assert.Equal(t, "119.98", order.Summary.Tax.StringFixed(2))
	assert.Equal(t, "894.83", order.Summary.Total.StringFixed(2))
	assert.True(t, cart.Cart().IsEmpty())

	checkout.Close()
	wg.Wait()

	orders, err := env.journal.ListOrders(ctx, userID, 5)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.Reference, orders[0].Reference)
	require.NotNil(t, orders[0].Card)
	assert.Equal(t, "1111", orders[0].Card.Last4)
	assert.True(t, orders[0].Summary.Total.Equal(order.Summary.Total))

	require.NoError(t, sessions.SignOut(ctx))
	_, err = env.store.LoadCart(ctx, userID)
	assert.ErrorIs(t, err, port.ErrSnapshotMiss)

	// Cleanup
	env.mysql.ExecContext(ctx, `DELETE FROM orders WHERE user_id = ?`, userID)
}

func TestIntegration_StaleTokenRejected(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	userID := "it-" + uuid.NewString()

	cart := service.NewCartService(env.client, env.store, env.store, logger)
	require.NoError(t, env.store.Save(ctx, domain.Session{Token: "expired", User: domain.User{ID: userID}}))
	defer env.store.Clear(ctx)

	_, err := cart.Load(ctx)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.True(t, cart.Cart().IsEmpty())
}

func workerLoop(id int, queue <-chan domain.Order, journal port.OrderJournal) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = journal.RecordOrder(ctx, order)
		cancel()
	}
}
