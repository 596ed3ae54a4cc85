package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrNoOrderEndpoints = errors.New("no order endpoints configured")
	ErrCheckoutClosed   = errors.New("checkout service closed")
)

type CheckoutConfig struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
	// Endpoints are tried in order until one accepts the order.
	Endpoints []string
	QueueSize int
}

type CheckoutService struct {
	cart     *CartService
	orders   port.OrderGateway
	sessions port.SessionStore
	cfg      CheckoutConfig
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	closed     bool
	orderQueue chan domain.Order
}

func NewCheckoutService(cart *CartService, orders port.OrderGateway, sessions port.SessionStore, cfg CheckoutConfig, logger *zap.Logger) *CheckoutService {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &CheckoutService{
		cart:       cart,
		orders:     orders,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger.Named("checkout"),
		now:        time.Now,
		orderQueue: make(chan domain.Order, cfg.QueueSize),
	}
}

// Summarize derives subtotal, tax and total from the cart. Unit prices are tax
// exclusive; tax is rounded to cents half away from zero.
func (s *CheckoutService) Summarize(cart domain.Cart) domain.CheckoutSummary {
	subtotal := cart.Subtotal()
	tax := subtotal.Mul(s.cfg.TaxRate).Round(2)

	shipping := decimal.Zero
	if !cart.IsEmpty() {
		shipping = s.cfg.ShippingFee.Round(2)
	}

	return domain.CheckoutSummary{
		ItemCount:   cart.ItemCount(),
		Subtotal:    subtotal,
		TaxRate:     s.cfg.TaxRate,
		Tax:         tax,
		ShippingFee: shipping,
		Total:       subtotal.Add(tax).Add(shipping),
	}
}

// CurrentSummary summarizes the cart snapshot without reloading it.
func (s *CheckoutService) CurrentSummary() domain.CheckoutSummary {
	return s.Summarize(s.cart.Cart())
}

// BuildSubmission validates req and assembles the payload for its payment method.
func (s *CheckoutService) BuildSubmission(req domain.CheckoutRequest, cart domain.Cart, summary domain.CheckoutSummary, user domain.User) (domain.OrderSubmission, error) {
	if err := req.Address.Validate(); err != nil {
		return domain.OrderSubmission{}, err
	}

	sub := domain.OrderSubmission{
		Reference: uuid.NewString(),
		UserID:    user.ID,
		Summary:   summary,
		Method:    req.Method,
		Address:   trimAddress(req.Address),
	}
	for _, l := range cart.Lines {
		sub.Items = append(sub.Items, domain.SubmissionItem{
			LineID:    l.LineID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	switch req.Method {
	case domain.PaymentMethodCard:
		info, err := req.Card.Validate(s.now())
		if err != nil {
			return domain.OrderSubmission{}, err
		}
		card := req.Card
		sub.Card = &card
		sub.CardInfo = &info

	case domain.PaymentMethodCash:
		cash := &domain.CashPayment{Tendered: summary.Total, Change: decimal.Zero}
		if req.Cash.Tendered.Valid {
			tendered := req.Cash.Tendered.Decimal.Round(2)
			if tendered.LessThan(summary.Total) {
				return domain.OrderSubmission{}, fmt.Errorf("%w: tendered %s is below total %s",
					domain.ErrInvalidPayment, tendered.StringFixed(2), summary.Total.StringFixed(2))
			}
			cash.Tendered = tendered
			cash.Change = tendered.Sub(summary.Total)
		}
		sub.Cash = cash

	case domain.PaymentMethodTransfer:
		sub.Transfer = &domain.TransferDetails{BankReference: strings.TrimSpace(req.Transfer.BankReference)}

	default:
		return domain.OrderSubmission{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidPayment, req.Method)
	}

	return sub, nil
}

// Checkout reloads the cart, builds the submission and probes the configured
// order endpoints in order until one accepts it.
func (s *CheckoutService) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Order, error) {
	if len(s.cfg.Endpoints) == 0 {
		return domain.Order{}, ErrNoOrderEndpoints
	}

	sess, err := currentSession(ctx, s.sessions)
	if err != nil {
		return domain.Order{}, err
	}

	cart, err := s.cart.Load(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	summary := s.Summarize(cart)
	sub, err := s.BuildSubmission(req, cart, summary, sess.User)
	if err != nil {
		return domain.Order{}, err
	}

	receipt, endpoint, err := s.submit(ctx, sub)
	if err != nil {
		return domain.Order{}, err
	}

	status := receipt.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	order := domain.Order{
		ID:        receipt.ID,
		Reference: sub.Reference,
		UserID:    sess.User.ID,
		Status:    status,
		Method:    sub.Method,
		Card:      sub.CardInfo,
		Summary:   summary,
		Endpoint:  endpoint,
		PlacedAt:  s.now(),
	}
	if order.ID == "" {
		order.ID = sub.Reference
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("endpoint", endpoint),
		zap.String("method", string(order.Method)),
		zap.String("total", summary.Total.StringFixed(2)))

	if _, err := s.cart.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear cart after checkout", zap.String("order_id", order.ID), zap.Error(err))
	}

	s.enqueue(order)
	return order, nil
}

func (s *CheckoutService) submit(ctx context.Context, sub domain.OrderSubmission) (domain.OrderReceipt, string, error) {
	var attempts []error
	for _, endpoint := range s.cfg.Endpoints {
		receipt, err := s.orders.CreateOrder(ctx, endpoint, sub)
		if err == nil {
			return receipt, endpoint, nil
		}

		s.logger.Debug("order endpoint rejected submission", zap.String("endpoint", endpoint), zap.Error(err))
		attempts = append(attempts, fmt.Errorf("%s: %w", endpoint, err))

		if ctx.Err() != nil || errors.Is(err, domain.ErrNotAuthenticated) {
			break
		}
	}
	return domain.OrderReceipt{}, "", fmt.Errorf("%w: %w", domain.ErrOrderNotPlaced, errors.Join(attempts...))
}

func (s *CheckoutService) enqueue(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("order queue closed, order not journaled", zap.String("order_id", order.ID))
		return
	}
	select {
	case s.orderQueue <- order:
	default:
		s.logger.Warn("order queue full, order not journaled", zap.String("order_id", order.ID))
	}
}

// GetOrderQueue exposes placed orders to the journaling workers.
func (s *CheckoutService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

func (s *CheckoutService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.orderQueue)
}

func trimAddress(a domain.ShippingAddress) domain.ShippingAddress {
	return domain.ShippingAddress{
		Recipient: strings.TrimSpace(a.Recipient),
		Street:    strings.TrimSpace(a.Street),
		City:      strings.TrimSpace(a.City),
		Phone:     strings.TrimSpace(a.Phone),
		Notes:     strings.TrimSpace(a.Notes),
	}
}
