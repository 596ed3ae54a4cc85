package remote

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// The service's payloads are not fully pinned down: collections arrive either
// bare or wrapped, and product fields either flat or nested under "product".

// flexID accepts string and numeric identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	*f = flexID(rawID(b))
	return nil
}

type productDTO struct {
	ID    flexID          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
	Stock int             `json:"stock"`
}

type cartLineDTO struct {
	ID        flexID          `json:"id"`
	ProductID flexID          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
	Stock     int             `json:"stock"`
	Product   *productDTO     `json:"product"`
}

func (d cartLineDTO) toDomain() domain.CartLine {
	line := domain.CartLine{
		LineID:    string(d.ID),
		ProductID: string(d.ProductID),
		Name:      d.Name,
		UnitPrice: d.Price,
		Quantity:  d.Quantity,
		ImageRef:  d.Image,
		Stock:     d.Stock,
	}
	if p := d.Product; p != nil {
		if line.ProductID == "" {
			line.ProductID = string(p.ID)
		}
		if line.Name == "" {
			line.Name = p.Name
		}
		if line.UnitPrice.IsZero() {
			line.UnitPrice = p.Price
		}
		if line.ImageRef == "" {
			line.ImageRef = p.Image
		}
		if line.Stock == 0 {
			line.Stock = p.Stock
		}
	}
	return line
}

type favoriteDTO struct {
	ID        flexID          `json:"id"`
	ProductID flexID          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Product   *productDTO     `json:"product"`
}

func (d favoriteDTO) toDomain() domain.FavoriteEntry {
	e := domain.FavoriteEntry{
		FavoriteID: string(d.ID),
		ProductID:  string(d.ProductID),
		Name:       d.Name,
		UnitPrice:  d.Price,
		ImageRef:   d.Image,
	}
	if p := d.Product; p != nil {
		if e.ProductID == "" {
			e.ProductID = string(p.ID)
		}
		if e.Name == "" {
			e.Name = p.Name
		}
		if e.UnitPrice.IsZero() {
			e.UnitPrice = p.Price
		}
		if e.ImageRef == "" {
			e.ImageRef = p.Image
		}
	}
	return e
}

type addLineDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityDTO struct {
	Quantity int `json:"quantity"`
}

type addFavoriteDTO struct {
	ProductID string `json:"productId"`
}

// amount is money sent as an exact JSON number.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = amount(d)
	return nil
}

type orderItemDTO struct {
	LineID    string  `json:"lineId"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice amount `json:"unitPrice"`
}

type cardDTO struct {
	Holder string `json:"holder"`
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
	Brand  string `json:"brand"`
	Last4  string `json:"last4"`
}

type cashDTO struct {
	Tendered amount `json:"tendered"`
	Change   amount `json:"change"`
}

type transferDTO struct {
	BankReference string `json:"bankReference,omitempty"`
}

type addressDTO struct {
	Recipient string `json:"recipient"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type orderRequestDTO struct {
	ClientReference string         `json:"clientReference"`
	UserID          string         `json:"userId"`
	Items           []orderItemDTO `json:"items"`
	Subtotal        amount         `json:"subtotal"`
	Tax             amount         `json:"tax"`
	ShippingFee     amount         `json:"shippingFee"`
	Total           amount         `json:"total"`
	PaymentMethod   string         `json:"paymentMethod"`
	Card            *cardDTO       `json:"card,omitempty"`
	Cash            *cashDTO       `json:"cash,omitempty"`
	Transfer        *transferDTO   `json:"transfer,omitempty"`
	ShippingAddress addressDTO     `json:"shippingAddress"`
}

func newOrderRequestDTO(sub domain.OrderSubmission) orderRequestDTO {
	dto := orderRequestDTO{
		ClientReference: sub.Reference,
		UserID:          sub.UserID,
		Items:           make([]orderItemDTO, 0, len(sub.Items)),
		Subtotal:        amount(sub.Summary.Subtotal),
		Tax:             amount(sub.Summary.Tax),
		ShippingFee:     amount(sub.Summary.ShippingFee),
		Total:           amount(sub.Summary.Total),
		PaymentMethod:   string(sub.Method),
		ShippingAddress: addressDTO(sub.Address),
	}
	for _, it := range sub.Items {
		dto.Items = append(dto.Items, orderItemDTO{
			LineID:    it.LineID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: amount(it.UnitPrice),
		})
	}
	if sub.Card != nil {
		dto.Card = &cardDTO{
			Holder: sub.Card.Holder,
			Number: sub.Card.Number,
			Expiry: sub.Card.Expiry,
			CVV:    sub.Card.CVV,
		}
		if sub.CardInfo != nil {
			dto.Card.Holder = sub.CardInfo.Holder
			dto.Card.Brand = sub.CardInfo.Brand
			dto.Card.Last4 = sub.CardInfo.Last4
		}
	}
	if sub.Cash != nil {
		dto.Cash = &cashDTO{Tendered: amount(sub.Cash.Tendered), Change: amount(sub.Cash.Change)}
	}
	if sub.Transfer != nil {
		dto.Transfer = &transferDTO{BankReference: sub.Transfer.BankReference}
	}
	return dto
}

type orderResponseDTO struct {
	ID        json.RawMessage   `json:"id"`
	OrderID   json.RawMessage   `json:"orderId"`
	OrderIDSn json.RawMessage   `json:"order_id"`
	Status    string            `json:"status"`
	Order     *orderResponseDTO `json:"order"`
	Data      *orderResponseDTO `json:"data"`
}

func (d *orderResponseDTO) receipt() domain.OrderReceipt {
	if d == nil {
		return domain.OrderReceipt{}
	}
	r := domain.OrderReceipt{Status: domain.OrderStatus(d.Status)}
	for _, raw := range []json.RawMessage{d.ID, d.OrderID, d.OrderIDSn} {
		if id := rawID(raw); id != "" {
			r.ID = id
			break
		}
	}
	for _, nested := range []*orderResponseDTO{d.Order, d.Data} {
		if r.ID != "" {
			break
		}
		n := nested.receipt()
		r.ID = n.ID
		if r.Status == "" {
			r.Status = n.Status
		}
	}
	return r
}

var errEmptyBody = errors.New("empty body")

func decodeReceipt(raw []byte) (domain.OrderReceipt, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.OrderReceipt{}, nil
	}
	var dto orderResponseDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return domain.OrderReceipt{}, err
	}
	return dto.receipt(), nil
}

// rawID accepts both string and numeric identifiers.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// decodeList accepts a bare array or an object wrapping it under one of the
// usual keys.
func decodeList(raw []byte, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errEmptyBody
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}

	var env struct {
		Items     json.RawMessage `json:"items"`
		Data      json.RawMessage `json:"data"`
		Cart      json.RawMessage `json:"cart"`
		Favorites json.RawMessage `json:"favorites"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	for _, inner := range []json.RawMessage{env.Items, env.Data, env.Cart, env.Favorites} {
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			continue
		}
		return decodeList(inner, out)
	}
	return json.Unmarshal([]byte("[]"), out)
}
