package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/fjod/cafe_cart/internal/pricing"
	"go.uber.org/zap"
)

// Catalog provides the current menu, fetching it on first use.
type Catalog interface {
	Load(ctx context.Context) (*domain.Menu, error)
}

type MenuHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewMenuHandler(catalog Catalog, timeout time.Duration) *MenuHandler {
	return &MenuHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type MenuResponse struct {
	Categories []pricing.PricedCategory `json:"categories"`
	Promotions []domain.Promotion       `json:"promotions"`
	FetchedAt  time.Time                `json:"fetched_at"`
	ValidUntil *time.Time               `json:"valid_until,omitempty"`
}

// GET /api/menu
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	menu, err := h.catalog.Load(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("menu load failed", zap.Error(err))
		respondErrorDetails(w, http.StatusServiceUnavailable, "catalog_unavailable", "menu is unavailable", err.Error())
		return
	}

	promotions := menu.Promotions
	if promotions == nil {
		promotions = []domain.Promotion{}
	}
	respondJSON(w, http.StatusOK, MenuResponse{
		Categories: pricing.Annotate(menu),
		Promotions: promotions,
		FetchedAt:  menu.FetchedAt,
		ValidUntil: menu.ValidUntil,
	})
}
