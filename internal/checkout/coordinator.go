// Package checkout drives a single cart through order submission.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/cart"
	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator owns the checkout state of one cart. The state is checked and
// advanced under mu; the lock is never held across the order call.
type Coordinator struct {
	store  *cart.Store
	client OrderClient
	log    *zap.Logger

	mu      sync.Mutex
	state   domain.CheckoutState
	lastErr error
	newKey  func() string
}

func New(store *cart.Store, client OrderClient, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		client: client,
		log:    logger.OrNop(log),
		state:  domain.CheckoutStateIdle,
		newKey: uuid.NewString,
	}
}

// Validate checks the customer name first, then that the cart has lines.
func Validate(info domain.CustomerInfo, lines []domain.CartLine) error {
	if strings.TrimSpace(info.Name) == "" {
		return &ValidationError{Reason: ReasonNameRequired}
	}
	if len(lines) == 0 {
		return &ValidationError{Reason: ReasonEmptyCart}
	}
	return nil
}

func (c *Coordinator) Validate(info domain.CustomerInfo, lines []domain.CartLine) error {
	return Validate(info, lines)
}

func (c *Coordinator) State() domain.CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the failure of the most recent attempt, or nil.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit places the current cart as an order. On success the ordered lines leave
// the cart, which is then empty unless items were added while the order was placed.
// On any failure the cart is left untouched so the customer can retry.
func (c *Coordinator) Submit(ctx context.Context, info domain.CustomerInfo) (domain.CheckoutResult, error) {
	if err := c.begin(); err != nil {
		return domain.CheckoutResult{}, err
	}

	lines := c.store.Snapshot()
	if err := Validate(info, lines); err != nil {
		c.finish(domain.CheckoutStateFailed, err)
		return domain.CheckoutResult{}, err
	}

	req := buildRequest(info, lines, c.newKey())
	c.advance(domain.CheckoutStateSubmitting)

	log := logger.WithTrace(ctx, c.log).With(
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Int("items", len(req.Items)),
	)

	result, err := c.client.PlaceOrder(ctx, req)
	if err != nil {
		err = classify(err)
		log.Warn("checkout failed", zap.Error(err))
		c.finish(domain.CheckoutStateFailed, err)
		return domain.CheckoutResult{}, err
	}

	c.store.Deduct(req.Items)
	c.finish(domain.CheckoutStateSucceeded, nil)
	log.Info("checkout succeeded", zap.String("order_id", result.OrderID), zap.String("status", result.Status))
	return result, nil
}

// begin moves a settled coordinator back to Idle and then into Validating.
func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.InFlight() {
		return ErrConcurrentSubmission
	}
	if c.state.IsTerminal() {
		c.state = domain.CheckoutStateIdle
		c.lastErr = nil
	}
	if !domain.CanTransitionTo(c.state, domain.CheckoutStateValidating) {
		return fmt.Errorf("checkout cannot start from state %s", c.state)
	}
	c.state = domain.CheckoutStateValidating
	return nil
}

func (c *Coordinator) advance(next domain.CheckoutState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if domain.CanTransitionTo(c.state, next) {
		c.state = next
	}
}

func (c *Coordinator) finish(next domain.CheckoutState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if domain.CanTransitionTo(c.state, next) {
		c.state = next
	}
	c.lastErr = err
}

func buildRequest(info domain.CustomerInfo, lines []domain.CartLine, key string) domain.CheckoutRequest {
	items := make([]domain.CheckoutItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.CheckoutItem{MenuItemID: line.MenuItemID, Qty: line.Quantity})
	}
	return domain.CheckoutRequest{
		CustomerName:   strings.TrimSpace(info.Name),
		CustomerEmail:  strings.TrimSpace(info.Email),
		CustomerPhone:  strings.TrimSpace(info.Phone),
		Items:          items,
		IdempotencyKey: key,
	}
}

// classify keeps rejections and transport failures as they are and treats anything
// else from a client as a transport failure.
func classify(err error) error {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport
	}
	return &TransportError{Err: err}
}
