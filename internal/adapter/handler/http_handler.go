package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

type HTTPHandler struct {
	sessions  *service.SessionService
	cart      *service.CartService
	favorites *service.FavoritesService
	checkout  *service.CheckoutService
	journal   port.OrderJournal
	logger    *zap.Logger
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sessionRequest struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type addLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type productRequest struct {
	ProductID string `json:"product_id"`
}

type checkoutRequest struct {
	Method   string                 `json:"method"`
	Card     domain.CardDetails     `json:"card"`
	Cash     domain.CashDetails     `json:"cash"`
	Transfer domain.TransferDetails `json:"transfer"`
	Address  domain.ShippingAddress `json:"address"`
}

type cartResponse struct {
	Lines     []domain.CartLine `json:"lines"`
	ItemCount int               `json:"item_count"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	FetchedAt time.Time         `json:"fetched_at"`
}

type favoritesResponse struct {
	Entries   []domain.FavoriteEntry `json:"entries"`
	FetchedAt time.Time              `json:"fetched_at"`
}

type toggleResponse struct {
	Added     bool `json:"added"`
	favoritesResponse
}

func NewHTTPHandler(sessions *service.SessionService, cart *service.CartService, favorites *service.FavoritesService,
	checkout *service.CheckoutService, journal port.OrderJournal, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		sessions:  sessions,
		cart:      cart,
		favorites: favorites,
		checkout:  checkout,
		journal:   journal,
		logger:    logger.Named("http"),
	}
}

func (h *HTTPHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", h.SignIn).Methods(http.MethodPut)
	api.HandleFunc("/session", h.SignOut).Methods(http.MethodDelete)

	api.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/lines", h.AddLine).Methods(http.MethodPost)
	api.HandleFunc("/cart/lines/{lineID}", h.UpdateLine).Methods(http.MethodPatch)
	api.HandleFunc("/cart/lines/{lineID}", h.RemoveLine).Methods(http.MethodDelete)

	api.HandleFunc("/favorites", h.GetFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.AddFavorite).Methods(http.MethodPost)
	api.HandleFunc("/favorites", h.ClearFavorites).Methods(http.MethodDelete)
	api.HandleFunc("/favorites/toggle", h.ToggleFavorite).Methods(http.MethodPost)
	api.HandleFunc("/favorites/{favoriteID}", h.RemoveFavorite).Methods(http.MethodDelete)

	api.HandleFunc("/checkout/summary", h.Summary).Methods(http.MethodGet)
	api.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.User)
}

func (h *HTTPHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.sessions.SignIn(r.Context(), req.Token, req.User)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess.User)
}

func (h *HTTPHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "signed out"})
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Load(r.Context())
	h.writeCart(w, cart, err)
}

func (h *HTTPHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing required fields"})
		return
	}
	cart, err := h.cart.Add(r.Context(), req.ProductID, req.Quantity)
	h.writeCart(w, cart, err)
}

func (h *HTTPHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.cart.UpdateQuantity(r.Context(), mux.Vars(r)["lineID"], req.Quantity)
	h.writeCart(w, cart, err)
}

func (h *HTTPHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Remove(r.Context(), mux.Vars(r)["lineID"])
	h.writeCart(w, cart, err)
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Clear(r.Context())
	h.writeCart(w, cart, err)
}

func (h *HTTPHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.favorites.Load(r.Context())
	h.writeFavorites(w, favs, err)
}

func (h *HTTPHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	favs, err := h.favorites.Add(r.Context(), req.ProductID)
	h.writeFavorites(w, favs, err)
}

func (h *HTTPHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	added, favs, err := h.favorites.Toggle(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Added: added, favoritesResponse: toFavoritesResponse(favs)})
}

func (h *HTTPHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	favs, err := h.favorites.Remove(r.Context(), mux.Vars(r)["favoriteID"])
	h.writeFavorites(w, favs, err)
}

func (h *HTTPHandler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.favorites.ClearAll(r.Context())
	h.writeFavorites(w, favs, err)
}

func (h *HTTPHandler) Summary(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Load(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkout.Summarize(cart))
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decode(w, r, &req) {
		return
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.checkout.Checkout(r.Context(), domain.CheckoutRequest{
		Method:   method,
		Card:     req.Card,
		Cash:     req.Cash,
		Transfer: req.Transfer,
		Address:  req.Address,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "order journal disabled"})
		return
	}
	sess, err := h.sessions.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid limit"})
			return
		}
	}

	orders, err := h.journal.ListOrders(r.Context(), sess.User.ID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) writeCart(w http.ResponseWriter, cart domain.Cart, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	writeJSON(w, http.StatusOK, cartResponse{
		Lines:     lines,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
		FetchedAt: cart.FetchedAt,
	})
}

func (h *HTTPHandler) writeFavorites(w http.ResponseWriter, favs domain.Favorites, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFavoritesResponse(favs))
}

func toFavoritesResponse(favs domain.Favorites) favoritesResponse {
	entries := favs.Entries
	if entries == nil {
		entries = []domain.FavoriteEntry{}
	}
	return favoritesResponse{Entries: entries, FetchedAt: favs.FetchedAt}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		status, message = http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrInvalidAddress):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrLineNotFound), errors.Is(err, domain.ErrFavoriteNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		status, message = http.StatusConflict, "insufficient stock"
	case errors.Is(err, domain.ErrEmptyCart):
		status, message = http.StatusConflict, "cart is empty"
	case errors.Is(err, domain.ErrOrderNotPlaced):
		status, message = http.StatusBadGateway, "order could not be placed"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, messageResponse{Success: false, Message: message})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
