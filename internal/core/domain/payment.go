package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

var paymentMethodAliases = map[string]PaymentMethod{
	"card":          PaymentMethodCard,
	"tarjeta":       PaymentMethodCard,
	"cash":          PaymentMethodCash,
	"efectivo":      PaymentMethodCash,
	"transfer":      PaymentMethodTransfer,
	"transferencia": PaymentMethodTransfer,
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m, ok := paymentMethodAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayment, s)
	}
	return m, nil
}

type CardDetails struct {
	Holder string `json:"holder"`
	Number string `json:"number"`
	Expiry string `json:"expiry"` // MM/YY
	CVV    string `json:"cvv"`
}

// CardSummary is the part of a card that may be journaled or published.
type CardSummary struct {
	Holder string `json:"holder"`
	Brand  string `json:"brand"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

func (c CardDetails) Validate(now time.Time) (CardSummary, error) {
	holder := strings.TrimSpace(c.Holder)
	if holder == "" {
		return CardSummary{}, fmt.Errorf("%w: card holder is required", ErrInvalidPayment)
	}

	number := digitsOnly(c.Number)
	if len(number) < 13 || len(number) > 19 || !luhnValid(number) {
		return CardSummary{}, fmt.Errorf("%w: card number is invalid", ErrInvalidPayment)
	}

	if err := validateExpiry(c.Expiry, now); err != nil {
		return CardSummary{}, err
	}

	cvv := strings.TrimSpace(c.CVV)
	if len(cvv) < 3 || len(cvv) > 4 || digitsOnly(cvv) != cvv {
		return CardSummary{}, fmt.Errorf("%w: card security code is invalid", ErrInvalidPayment)
	}

	return CardSummary{
		Holder: holder,
		Brand:  cardBrand(number),
		Last4:  number[len(number)-4:],
		Expiry: strings.TrimSpace(c.Expiry),
	}, nil
}

type CashDetails struct {
	Tendered decimal.NullDecimal `json:"tendered"`
}

type TransferDetails struct {
	BankReference string `json:"bank_reference"`
}

type ShippingAddress struct {
	Recipient string `json:"recipient"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func (a ShippingAddress) Validate() error {
	switch {
	case strings.TrimSpace(a.Recipient) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidAddress)
	case strings.TrimSpace(a.Street) == "":
		return fmt.Errorf("%w: street is required", ErrInvalidAddress)
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("%w: city is required", ErrInvalidAddress)
	}
	return nil
}

func validateExpiry(expiry string, now time.Time) error {
	month, year, ok := strings.Cut(strings.TrimSpace(expiry), "/")
	if !ok {
		return fmt.Errorf("%w: expiry must be MM/YY", ErrInvalidPayment)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return fmt.Errorf("%w: expiry must be MM/YY", ErrInvalidPayment)
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 2 {
		return fmt.Errorf("%w: expiry must be MM/YY", ErrInvalidPayment)
	}

	// card is valid through the last day of its expiry month
	firstOfNext := time.Date(2000+y, time.Month(m)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstOfNext) {
		return fmt.Errorf("%w: card has expired", ErrInvalidPayment)
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return ""
		}
	}
	return b.String()
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func cardBrand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "amex"
	}
	if len(number) >= 2 {
		p2, _ := strconv.Atoi(number[:2])
		if p2 >= 51 && p2 <= 55 {
			return "mastercard"
		}
	}
	if len(number) >= 4 {
		p4, _ := strconv.Atoi(number[:4])
		if p4 >= 2221 && p4 <= 2720 {
			return "mastercard"
		}
	}
	return "unknown"
}
