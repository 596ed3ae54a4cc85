package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

var endpoints = []string{"/orders", "/orders/create", "/checkout"}

type checkoutEnv struct {
	backend  *mockBackend
	cart     *CartService
	checkout *CheckoutService
}

func newCheckoutEnv(t *testing.T, shipping string) *checkoutEnv {
	t.Helper()
	backend := newMockBackend()
	sessions := signedIn()
	cart := NewCartService(backend, sessions, nil, zap.NewNop())
	svc := NewCheckoutService(cart, backend, sessions, CheckoutConfig{
		TaxRate:     decimal.RequireFromString("0.16"),
		ShippingFee: decimal.RequireFromString(shipping),
		Endpoints:   endpoints,
		QueueSize:   10,
	}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return &checkoutEnv{backend: backend, cart: cart, checkout: svc}
}

func (e *checkoutEnv) fill(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := e.cart.Add(ctx, "p-1", 2)
	require.NoError(t, err)
	_, err = e.cart.Add(ctx, "p-3", 1)
	require.NoError(t, err)
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{Recipient: "Ana López", Street: "Av. Juárez 10", City: "CDMX"}
}

func cardRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Method: domain.PaymentMethodCard,
		Card: domain.CardDetails{
			Holder: "ANA LOPEZ",
			Number: "4111 1111 1111 1111",
			Expiry: "12/30",
			CVV:    "123",
		},
		Address: address(),
	}
}

func TestSummarize(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)

	s := env.checkout.CurrentSummary()
	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, "1009.85", s.Subtotal.StringFixed(2))
	assert.Equal(t, "161.58", s.Tax.StringFixed(2))
	assert.Equal(t, "1171.43", s.Total.StringFixed(2))
}

func TestSummarize_ShippingOnlyForNonEmptyCart(t *testing.T) {
	env := newCheckoutEnv(t, "49.50")

	empty := env.checkout.Summarize(domain.Cart{})
	assert.True(t, empty.Total.IsZero())
	assert.True(t, empty.ShippingFee.IsZero())

	env.fill(t)
	s := env.checkout.CurrentSummary()
	assert.Equal(t, "49.50", s.ShippingFee.StringFixed(2))
	assert.Equal(t, "1220.93", s.Total.StringFixed(2))
}

func TestSummarize_TaxRoundsHalfAwayFromZero(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	cart := domain.Cart{Lines: []domain.CartLine{{UnitPrice: decimal.RequireFromString("0.25"), Quantity: 1}}}

	assert.Equal(t, "0.04", env.checkout.Summarize(cart).Tax.StringFixed(2))

	cart.Lines[0].UnitPrice = decimal.RequireFromString("3.125")
	// line total rounds to 3.13, tax 0.5008 -> 0.50
	assert.Equal(t, "0.50", env.checkout.Summarize(cart).Tax.StringFixed(2))
}

func TestCheckout_CardProbesUntilSuccess(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)
	env.backend.orderErrs["/orders"] = errors.New("404 not found")

	order, err := env.checkout.Checkout(context.Background(), cardRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"/orders", "/orders/create"}, env.backend.orderSubs)
	assert.Equal(t, "/orders/create", order.Endpoint)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "u-1", order.UserID)
	assert.NotEmpty(t, order.ID)
	assert.NotEmpty(t, order.Reference)
	require.NotNil(t, order.Card)
	assert.Equal(t, "1111", order.Card.Last4)
	assert.Equal(t, "visa", order.Card.Brand)
	assert.Equal(t, "1171.43", order.Summary.Total.StringFixed(2))

	require.Len(t, env.backend.submissions, 1)
	sub := env.backend.submissions[0]
	assert.Len(t, sub.Items, 2)
	assert.Nil(t, sub.Cash)
	assert.Nil(t, sub.Transfer)

	assert.True(t, env.cart.Cart().IsEmpty())
	assert.Equal(t, 1, env.backend.clearCalls)

	queued := <-env.checkout.GetOrderQueue()
	assert.Equal(t, order.ID, queued.ID)
}

func TestCheckout_AllEndpointsFail(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)
	for _, e := range endpoints {
		env.backend.orderErrs[e] = errors.New("boom " + e)
	}

	_, err := env.checkout.Checkout(context.Background(), cardRequest())
	require.ErrorIs(t, err, domain.ErrOrderNotPlaced)
	assert.Contains(t, err.Error(), "boom /checkout")
	assert.Equal(t, endpoints, env.backend.orderSubs)

	assert.False(t, env.cart.Cart().IsEmpty())
	assert.Equal(t, 0, env.backend.clearCalls)
}

func TestCheckout_AuthFailureStopsProbing(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)
	env.backend.orderErrs["/orders"] = domain.ErrNotAuthenticated

	_, err := env.checkout.Checkout(context.Background(), cardRequest())
	require.ErrorIs(t, err, domain.ErrOrderNotPlaced)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Equal(t, []string{"/orders"}, env.backend.orderSubs)
}

func TestCheckout_CancellationStopsProbing(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.backend.onOrder = func(string) { cancel() }

	_, err := env.checkout.Checkout(ctx, cardRequest())
	require.ErrorIs(t, err, domain.ErrOrderNotPlaced)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"/orders"}, env.backend.orderSubs)
	assert.Empty(t, env.backend.submissions)
	assert.False(t, env.cart.Cart().IsEmpty())
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newCheckoutEnv(t, "0")

	_, err := env.checkout.Checkout(context.Background(), cardRequest())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Empty(t, env.backend.orderSubs)
}

func TestCheckout_CashChange(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)

	req := domain.CheckoutRequest{
		Method:  domain.PaymentMethodCash,
		Cash:    domain.CashDetails{Tendered: decimal.NewNullDecimal(decimal.RequireFromString("1200"))},
		Address: address(),
	}
	_, err := env.checkout.Checkout(context.Background(), req)
	require.NoError(t, err)

	sub := env.backend.submissions[0]
	require.NotNil(t, sub.Cash)
	assert.Equal(t, "28.57", sub.Cash.Change.StringFixed(2))
	assert.Nil(t, sub.Card)
}

func TestBuildSubmission_Validation(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)
	cart := env.cart.Cart()
	summary := env.checkout.Summarize(cart)
	user := domain.User{ID: "u-1"}

	tests := []struct {
		name string
		req  func() domain.CheckoutRequest
		want error
	}{
		{"missing street", func() domain.CheckoutRequest {
			r := cardRequest()
			r.Address.Street = " "
			return r
		}, domain.ErrInvalidAddress},
		{"bad luhn", func() domain.CheckoutRequest {
			r := cardRequest()
			r.Card.Number = "4111111111111112"
			return r
		}, domain.ErrInvalidPayment},
		{"expired card", func() domain.CheckoutRequest {
			r := cardRequest()
			r.Card.Expiry = "09/26"
			return r
		}, domain.ErrInvalidPayment},
		{"short cvv", func() domain.CheckoutRequest {
			r := cardRequest()
			r.Card.CVV = "12"
			return r
		}, domain.ErrInvalidPayment},
		{"cash below total", func() domain.CheckoutRequest {
			return domain.CheckoutRequest{
				Method:  domain.PaymentMethodCash,
				Cash:    domain.CashDetails{Tendered: decimal.NewNullDecimal(decimal.RequireFromString("100"))},
				Address: address(),
			}
		}, domain.ErrInvalidPayment},
		{"unknown method", func() domain.CheckoutRequest {
			r := cardRequest()
			r.Method = "bitcoin"
			return r
		}, domain.ErrInvalidPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.checkout.BuildSubmission(tt.req(), cart, summary, user)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildSubmission_Transfer(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)
	cart := env.cart.Cart()

	sub, err := env.checkout.BuildSubmission(domain.CheckoutRequest{
		Method:   domain.PaymentMethodTransfer,
		Transfer: domain.TransferDetails{BankReference: " REF-77 "},
		Address:  address(),
	}, cart, env.checkout.Summarize(cart), domain.User{ID: "u-1"})
	require.NoError(t, err)

	require.NotNil(t, sub.Transfer)
	assert.Equal(t, "REF-77", sub.Transfer.BankReference)
	assert.Equal(t, "u-1", sub.UserID)
	assert.Len(t, sub.Reference, 36)
}

func TestCheckout_NoEndpoints(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.checkout.cfg.Endpoints = nil

	_, err := env.checkout.Checkout(context.Background(), cardRequest())
	assert.ErrorIs(t, err, ErrNoOrderEndpoints)
}

func TestCheckout_QueueClosed(t *testing.T) {
	env := newCheckoutEnv(t, "0")
	env.fill(t)
	env.checkout.Close()
	env.checkout.Close()

	order, err := env.checkout.Checkout(context.Background(), cardRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)

	_, open := <-env.checkout.GetOrderQueue()
	assert.False(t, open)
}
