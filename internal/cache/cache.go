package cache

import (
	"context"
	"errors"

	"github.com/fjod/cafe_cart/domain"
)

// CartCache persists session carts so they survive a gateway restart.
type CartCache interface {
	Get(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Set(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Delete(ctx context.Context, sessionID string) error
	// Touch keeps the stored cart of a session that is still in use.
	Touch(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
