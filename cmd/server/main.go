package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/adapter/remote"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const memoryCacheSize = 64

func main() {
	cfg, err := config.Load(pflag.NewFlagSet("storefront", pflag.ExitOnError), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store and snapshot cache
	var (
		sessions port.SessionStore
		cache    port.SnapshotCache
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.SessionProfile, cfg.SnapshotTTL)
		sessions, cache = redisAdapter, redisAdapter
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		sessions = storage.NewMemorySessionStore()
		cache = storage.NewMemoryCache(memoryCacheSize, cfg.SnapshotTTL)
		logger.Warn("redis not configured, session and snapshots kept in memory")
	}

	// Order journal
	var (
		journal port.OrderJournal
		db      *sql.DB
	)
	if cfg.MySQLDSN != "" {
		db, err = storage.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("failed to connect mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare order journal", zap.Error(err))
		}
		journal = mysqlAdapter
		logger.Info("connected to mysql")
	}

	// Order events
	var publisher port.EventPublisher = messaging.NoopPublisher{}
	if cfg.RabbitURL != "" {
		rabbit, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			logger.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		defer rabbit.Close()
		publisher = rabbit
		logger.Info("connected to rabbitmq", zap.String("exchange", cfg.RabbitExchange))
	}

	// Services
	client := remote.NewClient(cfg.APIURL, cfg.RequestTimeout, sessions, logger)
	cartService := service.NewCartService(client, sessions, cache, logger)
	favoritesService := service.NewFavoritesService(client, sessions, cache, logger)
	sessionService := service.NewSessionService(sessions, cache, cartService, favoritesService, logger)
	checkoutService := service.NewCheckoutService(cartService, client, sessions, service.CheckoutConfig{
		TaxRate:     cfg.TaxRate,
		ShippingFee: cfg.ShippingFee,
		Endpoints:   cfg.OrderEndpoints,
		QueueSize:   cfg.QueueSize,
	}, logger)

	warmStart(ctx, logger, cartService, favoritesService)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, checkoutService.GetOrderQueue(), journal, publisher, logger)
		}(i)
	}
	logger.Info("started order workers", zap.Int("count", cfg.WorkerCount))

	// gRPC health server
	grpcServer := grpc.NewServer()
	healthServer := handler.RegisterHealth(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(sessionService, cartService, favoritesService, checkoutService, journal, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr), zap.String("api_url", cfg.APIURL))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close order queue and wait for workers
	checkoutService.Close()
	wg.Wait()
	logger.Info("workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("connections closed")
}

// warmStart shows the cached snapshots first, then refreshes them from the server.
func warmStart(ctx context.Context, logger *zap.Logger, cart *service.CartService, favorites *service.FavoritesService) {
	if ok, err := cart.Restore(ctx); err == nil && ok {
		logger.Info("restored cart snapshot", zap.Int("items", cart.ItemCount()))
	}
	if ok, err := favorites.Restore(ctx); err == nil && ok {
		logger.Info("restored favorites snapshot", zap.Int("entries", len(favorites.Favorites().Entries)))
	}

	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if _, err := cart.Load(loadCtx); err != nil && !errors.Is(err, domain.ErrNotAuthenticated) {
			logger.Warn("initial cart load failed", zap.Error(err))
		}
		if _, err := favorites.Load(loadCtx); err != nil && !errors.Is(err, domain.ErrNotAuthenticated) {
			logger.Warn("initial favorites load failed", zap.Error(err))
		}
	}()
}

func workerLoop(id int, queue <-chan domain.Order, journal port.OrderJournal, publisher port.EventPublisher, logger *zap.Logger) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if journal != nil {
			if err := journal.RecordOrder(ctx, order); err != nil {
				logger.Error("failed to journal order",
					zap.Int("worker", id), zap.String("order_id", order.ID), zap.Error(err))
			} else {
				logger.Info("journaled order", zap.Int("worker", id), zap.String("order_id", order.ID))
			}
		}

		if err := publisher.PublishOrderPlaced(ctx, order); err != nil {
			logger.Error("failed to publish order event",
				zap.Int("worker", id), zap.String("order_id", order.ID), zap.Error(err))
		}

		cancel()
	}
}
