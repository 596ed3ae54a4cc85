package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

type Config struct {
	APIURL         string
	HTTPAddr       string
	GRPCAddr       string
	RedisAddr      string
	MySQLDSN       string
	RabbitURL      string
	RabbitExchange string
	TaxRate        decimal.Decimal
	ShippingFee    decimal.Decimal
	OrderEndpoints []string
	RequestTimeout time.Duration
	SnapshotTTL    time.Duration
	WorkerCount    int
	QueueSize      int
	SessionProfile string
	LogLevel       string
}

// Load reads .env (if present), then the environment, then command-line flags.
// Later sources win. Callers may register their own flags on fs before calling.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:         getEnv("STOREFRONT_API_URL", "http://localhost:3000/api"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:       getEnv("GRPC_ADDR", ":50051"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		MySQLDSN:       getEnv("MYSQL_DSN", ""),
		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "storefront_events"),
		SessionProfile: getEnv("SESSION_PROFILE", "default"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	taxRate := getEnv("TAX_RATE", "0.16")
	shippingFee := getEnv("SHIPPING_FEE", "0")
	endpoints := getEnv("ORDER_ENDPOINTS", "/orders,/orders/create,/checkout,/pedidos")

	var err error
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}
	if cfg.SnapshotTTL, err = time.ParseDuration(getEnv("SNAPSHOT_TTL", "168h")); err != nil {
		return nil, fmt.Errorf("SNAPSHOT_TTL: %w", err)
	}
	if cfg.WorkerCount, err = strconv.Atoi(getEnv("WORKER_COUNT", "2")); err != nil {
		return nil, fmt.Errorf("WORKER_COUNT: %w", err)
	}
	if cfg.QueueSize, err = strconv.Atoi(getEnv("QUEUE_SIZE", "100")); err != nil {
		return nil, fmt.Errorf("QUEUE_SIZE: %w", err)
	}

	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "base URL of the storefront service")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "local HTTP API listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for session and snapshots (empty: in memory)")
	fs.StringVar(&cfg.MySQLDSN, "mysql-dsn", cfg.MySQLDSN, "mysql DSN for the order journal (empty: disabled)")
	fs.StringVar(&cfg.RabbitURL, "rabbit-url", cfg.RabbitURL, "rabbitmq URL for order events (empty: disabled)")
	fs.StringVar(&cfg.RabbitExchange, "rabbit-exchange", cfg.RabbitExchange, "rabbitmq topic exchange")
	fs.StringVar(&taxRate, "tax-rate", taxRate, "tax rate applied to the subtotal")
	fs.StringVar(&shippingFee, "shipping-fee", shippingFee, "flat shipping fee for non-empty carts")
	fs.StringVar(&endpoints, "order-endpoints", endpoints, "comma separated order endpoints, tried in order")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "timeout per remote request")
	fs.DurationVar(&cfg.SnapshotTTL, "snapshot-ttl", cfg.SnapshotTTL, "how long cached snapshots are kept")
	fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "order journal workers")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "placed order queue size")
	fs.StringVar(&cfg.SessionProfile, "profile", cfg.SessionProfile, "session profile name")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, fmt.Errorf("tax rate %q: %w", taxRate, err)
	}
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate %q: must not be negative", taxRate)
	}
	if cfg.ShippingFee, err = decimal.NewFromString(shippingFee); err != nil {
		return nil, fmt.Errorf("shipping fee %q: %w", shippingFee, err)
	}
	if cfg.ShippingFee.IsNegative() {
		return nil, fmt.Errorf("shipping fee %q: must not be negative", shippingFee)
	}
	cfg.OrderEndpoints = splitList(endpoints)
	if len(cfg.OrderEndpoints) == 0 {
		return nil, fmt.Errorf("at least one order endpoint is required")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
