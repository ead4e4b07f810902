package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/checkout"
	"github.com/fjod/cafe_cart/internal/logger"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

type CheckoutRequestDTO struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type CheckoutResponseDTO struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url,omitempty"`
}

// POST /api/cart/checkout
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(ctx)
	if s == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "missing session")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := s.Checkout.Submit(ctx, domain.CustomerInfo{
		Name:  req.CustomerName,
		Email: req.CustomerEmail,
		Phone: req.CustomerPhone,
	})
	if err != nil {
		logger.FromContext(ctx).Info("checkout not completed", zap.Error(err))
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		OrderID:    result.OrderID,
		Status:     result.Status,
		PaymentURL: result.PaymentURL,
	})
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	var (
		validation *checkout.ValidationError
		rejected   *checkout.RejectedError
		transport  *checkout.TransportError
	)
	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Reason, validation.Error())
	case errors.Is(err, checkout.ErrConcurrentSubmission):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &rejected):
		respondError(w, http.StatusUnprocessableEntity, "checkout_rejected", rejected.Message)
	case errors.As(err, &transport):
		respondErrorDetails(w, http.StatusBadGateway, "order_service_unavailable", "order service is unavailable", transport.Err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
