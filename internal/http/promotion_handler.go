package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/cafe_cart/internal/logger"
	"go.uber.org/zap"
)

// PromotionNotifier announces that promotions changed.
type PromotionNotifier interface {
	Notify(ctx context.Context) error
}

type PromotionHandler struct {
	notifier PromotionNotifier
	timeout  time.Duration
}

func NewPromotionHandler(notifier PromotionNotifier, timeout time.Duration) *PromotionHandler {
	return &PromotionHandler{
		notifier: notifier,
		timeout:  timeout,
	}
}

// POST /api/admin/promotions/refresh
func (h *PromotionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.notifier.Notify(ctx); err != nil {
		logger.FromContext(ctx).Error("promotion notify failed", zap.Error(err))
		respondErrorDetails(w, http.StatusBadGateway, "promotion_signal_failed", "promotion change was not announced to every instance", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
