package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Catalog        Catalog
	Sessions       Sessions
	Notifier       PromotionNotifier
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 30 * time.Second

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	menuHandler := NewMenuHandler(cfg.Catalog, cfg.RequestTimeout)
	cartHandler := NewCartHandler(cfg.Catalog, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.RequestTimeout)
	promotionHandler := NewPromotionHandler(cfg.Notifier, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", menuHandler.Get)

		r.Route("/cart", func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Sessions))
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{menu_item_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{menu_item_id}", cartHandler.RemoveItem)
			r.Post("/checkout", checkoutHandler.Submit)
		})

		r.Post("/admin/promotions/refresh", promotionHandler.Refresh)
	})

	return r
}
