package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type CheckoutSummary struct {
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}

// CheckoutRequest is what the caller supplies at checkout; everything else is
// derived from the freshly reloaded cart.
type CheckoutRequest struct {
	Method   PaymentMethod   `json:"method"`
	Card     CardDetails     `json:"card"`
	Cash     CashDetails     `json:"cash"`
	Transfer TransferDetails `json:"transfer"`
	Address  ShippingAddress `json:"address"`
}

type SubmissionItem struct {
	LineID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type CashPayment struct {
	Tendered decimal.Decimal
	Change   decimal.Decimal
}

// OrderSubmission is the payment-method-specific payload sent to the order service.
// Exactly one of Card, Cash and Transfer is set, matching Method.
type OrderSubmission struct {
	Reference string
	UserID    string
	Items     []SubmissionItem
	Summary   CheckoutSummary
	Method    PaymentMethod
	Card      *CardDetails
	CardInfo  *CardSummary
	Cash      *CashPayment
	Transfer  *TransferDetails
	Address   ShippingAddress
}

// OrderReceipt is what the order service reports back; the client only relies
// on an identifier and a status.
type OrderReceipt struct {
	ID     string
	Status OrderStatus
}

type Order struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference"`
	UserID    string          `json:"user_id"`
	Status    OrderStatus     `json:"status"`
	Method    PaymentMethod   `json:"method"`
	Card      *CardSummary    `json:"card,omitempty"`
	Summary   CheckoutSummary `json:"summary"`
	Endpoint  string          `json:"endpoint"`
	PlacedAt  time.Time       `json:"placed_at"`
}
