package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL matches the default session idle timeout.
	DefaultTTL = 30 * time.Minute

	maxJitter = 5 * time.Minute
)

type RedisOption func(*RedisCache)

// WithTTL sets how long a stored cart outlives its last write or read. It should
// be at least the session idle timeout, or a restored session finds no cart.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisCache) {
		if ttl > 0 {
			r.baseTTL = ttl
		}
	}
}

func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	r := &RedisCache{
		client:  client,
		baseTTL: DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RedisCache keeps a session's cart under cart:<sessionID>. Expiry slides: every
// write, read and Touch pushes it out by the TTL plus jitter.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	now     func() time.Time
}

type cachedCart struct {
	SessionID string            `json:"session_id"`
	Lines     []domain.CartLine `json:"lines"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Get returns the stored lines and extends their expiry. A payload written for
// another session is treated as a miss.
func (r *RedisCache) Get(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	data, err := r.client.GetEx(ctx, cacheKey(sessionID), r.ttl()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart cachedCart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if cart.SessionID != "" && cart.SessionID != sessionID {
		return nil, ErrCacheMiss
	}

	return cart.Lines, nil
}

func (r *RedisCache) Set(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	payload, err := json.Marshal(cachedCart{
		SessionID: sessionID,
		Lines:     lines,
		UpdatedAt: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(sessionID), payload, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Touch extends the expiry of a stored cart without rewriting it. A session with
// no stored cart is not an error.
func (r *RedisCache) Touch(ctx context.Context, sessionID string) error {
	if err := r.client.Expire(ctx, cacheKey(sessionID), r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// ttl spreads expiries so carts written together do not expire together.
func (r *RedisCache) ttl() time.Duration {
	return r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
