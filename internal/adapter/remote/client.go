package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	cartPath      = "/cart"
	favoritesPath = "/favorites"
	maxBodyBytes  = 1 << 20
	userAgent     = "storefront-client/1.0"
)

var ErrEndpointNotFound = errors.New("endpoint not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrNotAuthenticated
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return ErrEndpointNotFound
	}
	return nil
}

// Client talks JSON to the remote catalog/order service. It implements
// port.CartGateway, port.FavoritesGateway and port.OrderGateway.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions port.SessionStore
	logger   *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, sessions port.SessionStore, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		logger:   logger.Named("remote"),
	}
}

func (c *Client) ListCart(ctx context.Context) ([]domain.CartLine, error) {
	var dtos []cartLineDTO
	if err := c.getList(ctx, cartPath, &dtos); err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(dtos))
	for _, d := range dtos {
		lines = append(lines, d.toDomain())
	}
	return lines, nil
}

func (c *Client) AddLine(ctx context.Context, productID string, quantity int) error {
	return c.do(ctx, http.MethodPost, cartPath, addLineDTO{ProductID: productID, Quantity: quantity}, nil, nil)
}

func (c *Client) UpdateLine(ctx context.Context, lineID string, quantity int) error {
	err := c.do(ctx, http.MethodPut, itemPath(cartPath, lineID), quantityDTO{Quantity: quantity}, nil, nil)
	return missingAs(err, domain.ErrLineNotFound)
}

func (c *Client) RemoveLine(ctx context.Context, lineID string) error {
	err := c.do(ctx, http.MethodDelete, itemPath(cartPath, lineID), nil, nil, nil)
	return missingAs(err, domain.ErrLineNotFound)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, cartPath, nil, nil, nil)
}

func (c *Client) ListFavorites(ctx context.Context) ([]domain.FavoriteEntry, error) {
	var dtos []favoriteDTO
	if err := c.getList(ctx, favoritesPath, &dtos); err != nil {
		return nil, err
	}
	entries := make([]domain.FavoriteEntry, 0, len(dtos))
	for _, d := range dtos {
		entries = append(entries, d.toDomain())
	}
	return entries, nil
}

func (c *Client) AddFavorite(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodPost, favoritesPath, addFavoriteDTO{ProductID: productID}, nil, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, favoriteID string) error {
	err := c.do(ctx, http.MethodDelete, itemPath(favoritesPath, favoriteID), nil, nil, nil)
	return missingAs(err, domain.ErrFavoriteNotFound)
}

func (c *Client) CreateOrder(ctx context.Context, endpoint string, sub domain.OrderSubmission) (domain.OrderReceipt, error) {
	headers := map[string]string{"Idempotency-Key": sub.Reference}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, endpoint, newOrderRequestDTO(sub), &raw, headers); err != nil {
		return domain.OrderReceipt{}, err
	}

	receipt, err := decodeReceipt(raw)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("decode order response: %w", err)
	}
	return receipt, nil
}

func (c *Client) getList(ctx context.Context, path string, out any) error {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw, nil); err != nil {
		return err
	}
	if err := decodeList(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out *json.RawMessage, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	sess, err := c.sessions.Load(ctx)
	if errors.Is(err, port.ErrNoSession) {
		return domain.ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.Token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: errorMessage(data)}
	}

	if out != nil {
		*out = data
	}
	return nil
}

// itemPath addresses one element of a collection; id is a single path segment.
func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

// missingAs reports a 404 on an item resource as the domain's not-found error.
func missingAs(err, notFound error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", notFound, err)
	}
	return err
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
