package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	checkoutPath       = "/api/cart/checkout"
	idempotencyHeader  = "Idempotency-Key"
	maxOrderReplyBytes = 1 << 20
	defaultTimeout     = 10 * time.Second
)

// OrderClient submits an order to the backend that owns orders and payment.
type OrderClient interface {
	PlaceOrder(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error)
}

type HTTPOrderClient struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[domain.CheckoutResult]
}

// NewHTTPOrderClient guards the backend with a circuit breaker. Only transport
// failures count against it; a rejection means the backend is up.
func NewHTTPOrderClient(baseURL string, client *http.Client, log *zap.Logger) *HTTPOrderClient {
	if client == nil {
		client = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPOrderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cb: circuitbreaker.New[domain.CheckoutResult](circuitbreaker.Settings{
			Name:         "orders",
			IsSuccessful: reachedBackend,
		}, log),
	}
}

func reachedBackend(err error) bool {
	var rejected *RejectedError
	return err == nil || errors.As(err, &rejected)
}

// orderID accepts both string and numeric ids from the backend.
type orderID string

func (o *orderID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = orderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order_id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("order_id is not an integer: %s", n)
	}
	*o = orderID(n.String())
	return nil
}

type orderReply struct {
	OrderID    orderID `json:"order_id"`
	Status     string  `json:"status"`
	PaymentURL string  `json:"payment_url"`
}

type errorReply struct {
	Error string `json:"error"`
}

// PlaceOrder returns *TransportError when the backend could not be reached and
// *RejectedError for any reply that is not a usable success.
func (c *HTTPOrderClient) PlaceOrder(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	result, err := c.cb.Execute(func() (domain.CheckoutResult, error) {
		return c.placeOrder(ctx, req)
	})
	if circuitbreaker.IsOpen(err) {
		return domain.CheckoutResult{}, &TransportError{Err: err}
	}
	return result, err
}

func (c *HTTPOrderClient) placeOrder(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.CheckoutResult{}, fmt.Errorf("encode checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkoutPath, bytes.NewReader(body))
	if err != nil {
		return domain.CheckoutResult{}, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, req.IdempotencyKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.CheckoutResult{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOrderReplyBytes))
	if err != nil {
		return domain.CheckoutResult{}, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var reply errorReply
		_ = json.Unmarshal(raw, &reply)
		return domain.CheckoutResult{}, NewRejectedError(resp.StatusCode, strings.TrimSpace(reply.Error))
	}

	var reply orderReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.OrderID == "" {
		return domain.CheckoutResult{}, NewRejectedError(resp.StatusCode, "")
	}
	return domain.CheckoutResult{
		OrderID:    string(reply.OrderID),
		Status:     reply.Status,
		PaymentURL: reply.PaymentURL,
	}, nil
}
