package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/remote"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const usage = `usage: cartctl [flags] <command>

commands:
  cart        show the cart
  favorites   show saved products
  summary     show the checkout summary for the cart
  orders      list orders journaled by this client
  load        fire concurrent cart reads at the service and report the outcome

flags:
`

func main() {
	fs := pflag.NewFlagSet("cartctl", pflag.ExitOnError)
	token := fs.String("token", os.Getenv("STOREFRONT_TOKEN"), "auth token (defaults to the stored session)")
	userID := fs.String("user-id", os.Getenv("STOREFRONT_USER_ID"), "user id owning --token (required with it)")
	limit := fs.Int("limit", 10, "orders: how many to list")
	requests := fs.Int("requests", 50, "load: total requests")
	concurrency := fs.Int("concurrency", 10, "load: concurrent requests")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx := context.Background()

	sessions, err := openSessions(ctx, cfg, *token, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		os.Exit(1)
	}

	client := remote.NewClient(cfg.APIURL, cfg.RequestTimeout, sessions, logger)
	cart := service.NewCartService(client, sessions, nil, logger)
	favorites := service.NewFavoritesService(client, sessions, nil, logger)
	checkout := service.NewCheckoutService(cart, client, sessions, service.CheckoutConfig{
		TaxRate:     cfg.TaxRate,
		ShippingFee: cfg.ShippingFee,
		Endpoints:   cfg.OrderEndpoints,
	}, logger)
	defer checkout.Close()

	switch cmd := fs.Arg(0); cmd {
	case "cart":
		c, err := cart.Load(ctx)
		exitOn(logger, err)
		printCart(os.Stdout, c)
	case "favorites":
		f, err := favorites.Load(ctx)
		exitOn(logger, err)
		printFavorites(os.Stdout, f)
	case "summary":
		c, err := cart.Load(ctx)
		exitOn(logger, err)
		printSummary(os.Stdout, checkout.Summarize(c))
	case "orders":
		exitOn(logger, listOrders(ctx, cfg, sessions, *limit))
	case "load":
		runLoad(ctx, client, *requests, *concurrency)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		fs.Usage()
		os.Exit(2)
	}
}

func openSessions(ctx context.Context, cfg *config.Config, token, userID string) (port.SessionStore, error) {
	if token != "" {
		if userID == "" {
			return nil, fmt.Errorf("--user-id is required with --token")
		}
		store := storage.NewMemorySessionStore()
		return store, store.Save(ctx, domain.Session{Token: token, User: domain.User{ID: userID}})
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("pass --token or configure REDIS_ADDR to use the stored session")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return storage.NewRedisAdapter(rdb, cfg.SessionProfile, cfg.SnapshotTTL), nil
}

func listOrders(ctx context.Context, cfg *config.Config, sessions port.SessionStore, limit int) error {
	if cfg.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is not configured")
	}
	sess, err := sessions.Load(ctx)
	if err != nil {
		return err
	}

	db, err := storage.OpenMySQL(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	orders, err := storage.NewMySQLAdapter(db).ListOrders(ctx, sess.User.ID, limit)
	if err != nil {
		return err
	}
	printOrders(os.Stdout, orders)
	return nil
}

func runLoad(ctx context.Context, gw port.CartGateway, total, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	start := time.Now()

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := gw.ListCart(ctx); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== LOAD RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Concurrency:      %d\n", concurrency)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==================================")
}

func printCart(w io.Writer, c domain.Cart) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPRODUCT\tNAME\tPRICE\tQTY\tTOTAL")
	for _, l := range c.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			l.LineID, l.ProductID, l.Name, l.UnitPrice.StringFixed(2), l.Quantity, l.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t\t%d\t%s\n", c.ItemCount(), c.Subtotal().StringFixed(2))
	tw.Flush()
}

func printFavorites(w io.Writer, f domain.Favorites) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FAVORITE\tPRODUCT\tNAME\tPRICE")
	for _, e := range f.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.FavoriteID, e.ProductID, e.Name, e.UnitPrice.StringFixed(2))
	}
	tw.Flush()
}

func printSummary(w io.Writer, s domain.CheckoutSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Items\t%d\t\n", s.ItemCount)
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", s.Subtotal.StringFixed(2))
	fmt.Fprintf(tw, "Tax (%s%%)\t%s\t\n", s.TaxRate.Shift(2).String(), s.Tax.StringFixed(2))
	fmt.Fprintf(tw, "Shipping\t%s\t\n", s.ShippingFee.StringFixed(2))
	fmt.Fprintf(tw, "Total\t%s\t\n", s.Total.StringFixed(2))
	tw.Flush()
}

func printOrders(w io.Writer, orders []domain.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tPLACED\tSTATUS\tMETHOD\tITEMS\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", o.ID, o.PlacedAt.Local().Format(time.DateTime),
			o.Status, o.Method, o.Summary.ItemCount, o.Summary.Total.StringFixed(2))
	}
	tw.Flush()
}

func exitOn(logger *zap.Logger, err error) {
	if err != nil {
		logger.Debug("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
