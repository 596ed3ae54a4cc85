package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	LineID    string          `json:"line_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
	Stock     int             `json:"stock"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Cart is a read replica of the server-side cart. It is only ever replaced as a
// whole by a successful server read.
type Cart struct {
	Lines     []CartLine `json:"lines"`
	FetchedAt time.Time  `json:"fetched_at"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum.Round(2)
}

func (c Cart) Find(lineID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.LineID == lineID {
			return l, true
		}
	}
	return CartLine{}, false
}

func (c Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines, FetchedAt: c.FetchedAt}
}
