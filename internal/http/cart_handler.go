package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/cafe_cart/internal/cart"
	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/fjod/cafe_cart/internal/pricing"
	"github.com/fjod/cafe_cart/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewCartHandler(catalog Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   *int  `json:"qty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"qty"`
}

type CartLineDTO struct {
	MenuItemID      int64  `json:"menu_item_id"`
	Name            string `json:"name"`
	Quantity        int    `json:"qty"`
	PriceCents      int64  `json:"price_cents"`
	DiscountPercent *int   `json:"discount_percent,omitempty"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	LineTotalCents  int64  `json:"line_total_cents"`
}

type CartResponse struct {
	SessionID     string        `json:"session_id"`
	Items         []CartLineDTO `json:"items"`
	CheckoutState string        `json:"checkout_state"`
	pricing.Summary
}

func newCartResponse(s *session.Session) CartResponse {
	lines := s.Cart.Snapshot()
	items := make([]CartLineDTO, 0, len(lines))
	for _, l := range lines {
		items = append(items, CartLineDTO{
			MenuItemID:      l.MenuItemID,
			Name:            l.Name,
			Quantity:        l.Quantity,
			PriceCents:      l.PriceCents,
			DiscountPercent: l.DiscountPercent,
			UnitPriceCents:  pricing.LinePrice(l),
			LineTotalCents:  pricing.LineTotal(l),
		})
	}
	return CartResponse{
		SessionID:     s.ID,
		Items:         items,
		CheckoutState: s.Checkout.State().String(),
		Summary:       pricing.Summarize(lines),
	}
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(ctx)
	if s == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "missing session")
		return
	}
	// refreshes an out of date menu so the cart is repriced; the cart is shown either way
	if _, err := h.catalog.Load(ctx); err != nil {
		logger.FromContext(ctx).Warn("menu load failed", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, newCartResponse(s))
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(ctx)
	if s == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "missing session")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.MenuItemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_menu_item_id", "menu_item_id must be positive")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "qty must be a positive integer")
		return
	}

	menu, err := h.catalog.Load(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("menu load failed", zap.Error(err))
		respondErrorDetails(w, http.StatusServiceUnavailable, "catalog_unavailable", "menu is unavailable", err.Error())
		return
	}
	item, ok := menu.FindItem(req.MenuItemID)
	if !ok {
		respondError(w, http.StatusNotFound, "item_not_found", "menu item not found")
		return
	}
	if !item.Available {
		respondError(w, http.StatusConflict, "item_unavailable", "menu item is not available")
		return
	}

	if err := s.Cart.Add(item, qty); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(s))
}

// PUT /api/cart/items/{menu_item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "missing session")
		return
	}

	itemID, ok := menuItemIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "qty is required")
		return
	}

	// zero or negative removes the line
	s.Cart.UpdateQuantity(itemID, *req.Quantity)
	respondJSON(w, http.StatusOK, newCartResponse(s))
}

// DELETE /api/cart/items/{menu_item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "missing session")
		return
	}

	itemID, ok := menuItemIDParam(w, r)
	if !ok {
		return
	}

	s.Cart.Remove(itemID)
	respondJSON(w, http.StatusOK, newCartResponse(s))
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "missing session")
		return
	}

	s.Cart.Clear()
	respondJSON(w, http.StatusOK, newCartResponse(s))
}

func menuItemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "menu_item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_menu_item_id", "menu_item_id must be a positive integer")
		return 0, false
	}
	return itemID, true
}

func handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, "invalid_menu_item_id", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
