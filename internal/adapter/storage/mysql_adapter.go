package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

const ordersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id           VARCHAR(64)   NOT NULL PRIMARY KEY,
	reference    VARCHAR(64)   NOT NULL,
	user_id      VARCHAR(64)   NOT NULL,
	status       VARCHAR(32)   NOT NULL,
	method       VARCHAR(16)   NOT NULL,
	card_holder  VARCHAR(128)  NULL,
	card_brand   VARCHAR(16)   NULL,
	card_last4   CHAR(4)       NULL,
	card_expiry  CHAR(5)       NULL,
	item_count   INT           NOT NULL,
	subtotal     DECIMAL(12,2) NOT NULL,
	tax_rate     DECIMAL(6,4)  NOT NULL,
	tax          DECIMAL(12,2) NOT NULL,
	shipping_fee DECIMAL(12,2) NOT NULL,
	total        DECIMAL(12,2) NOT NULL,
	endpoint     VARCHAR(255)  NOT NULL,
	placed_at    DATETIME(6)   NOT NULL,
	UNIQUE KEY uq_orders_reference (reference),
	KEY idx_orders_user_placed (user_id, placed_at)
)`

// MySQLAdapter is the local journal of orders this client placed.
type MySQLAdapter struct {
	db *sql.DB
}

// NormalizeDSN forces parseTime so placed_at scans into time.Time whatever the
// operator configured.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func OpenMySQL(dsn string) (*sql.DB, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return sql.Open("mysql", normalized)
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, ordersSchema); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RecordOrder(ctx context.Context, order domain.Order) error {
	var holder, brand, last4, expiry sql.NullString
	if c := order.Card; c != nil {
		holder = sql.NullString{String: c.Holder, Valid: true}
		brand = sql.NullString{String: c.Brand, Valid: true}
		last4 = sql.NullString{String: c.Last4, Valid: true}
		expiry = sql.NullString{String: c.Expiry, Valid: true}
	}

	s := order.Summary
	_, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO orders
			(id, reference, user_id, status, method, card_holder, card_brand, card_last4, card_expiry,
			 item_count, subtotal, tax_rate, tax, shipping_fee, total, endpoint, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Reference, order.UserID, string(order.Status), string(order.Method), holder, brand, last4, expiry,
		s.ItemCount, s.Subtotal.StringFixed(2), s.TaxRate.StringFixed(4), s.Tax.StringFixed(2),
		s.ShippingFee.StringFixed(2), s.Total.StringFixed(2), order.Endpoint, order.PlacedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, reference, user_id, status, method, card_holder, card_brand, card_last4, card_expiry,
		       item_count, subtotal, tax_rate, tax, shipping_fee, total, endpoint, placed_at
		FROM orders WHERE user_id = ?
		ORDER BY placed_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o                                     domain.Order
			status, method                        string
			holder, brand, last4, expiry          sql.NullString
			subtotal, taxRate, tax, shipping, tot string
		)
		if err := rows.Scan(&o.ID, &o.Reference, &o.UserID, &status, &method, &holder, &brand, &last4, &expiry,
			&o.Summary.ItemCount, &subtotal, &taxRate, &tax, &shipping, &tot, &o.Endpoint, &o.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		o.Status = domain.OrderStatus(status)
		o.Method = domain.PaymentMethod(method)
		if brand.Valid || last4.Valid {
			o.Card = &domain.CardSummary{Holder: holder.String, Brand: brand.String, Last4: last4.String, Expiry: expiry.String}
		}
		if o.Summary.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, fmt.Errorf("parse subtotal: %w", err)
		}
		if o.Summary.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
			return nil, fmt.Errorf("parse tax rate: %w", err)
		}
		if o.Summary.Tax, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("parse tax: %w", err)
		}
		if o.Summary.ShippingFee, err = decimal.NewFromString(shipping); err != nil {
			return nil, fmt.Errorf("parse shipping fee: %w", err)
		}
		if o.Summary.Total, err = decimal.NewFromString(tot); err != nil {
			return nil, fmt.Errorf("parse total: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}
