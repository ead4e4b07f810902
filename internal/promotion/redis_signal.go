package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	LastUpdatedKey  = "promotions:last_updated"
	UpdatedChannel  = "promotions:updated"
	lastUpdatedTTL  = 7 * 24 * time.Hour
	redisOpsTimeout = 2 * time.Second
)

// RedisSignal shares the "promotions last updated" marker between instances through
// a Redis key and announces every write on a pub/sub channel. An instance ignores
// its own writes.
type RedisSignal struct {
	client *redis.Client
	origin string
	log    *zap.Logger
	now    func() time.Time
}

func NewRedisSignal(client *redis.Client, origin string, log *zap.Logger) *RedisSignal {
	return &RedisSignal{
		client: client,
		origin: origin,
		log:    logger.OrNop(log),
		now:    time.Now,
	}
}

func (r *RedisSignal) Publish(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpsTimeout)
	defer cancel()

	value := marker{Origin: r.origin, At: r.now().UnixNano()}.String()
	if err := r.client.Set(ctx, LastUpdatedKey, value, lastUpdatedTTL).Err(); err != nil {
		return fmt.Errorf("redis set promotion marker failed: %w", err)
	}
	if err := r.client.Publish(ctx, UpdatedChannel, value).Err(); err != nil {
		return fmt.Errorf("redis publish promotion marker failed: %w", err)
	}
	return nil
}

// LastUpdated returns the time of the last promotion change announced by any
// instance, or the zero time if none is recorded.
func (r *RedisSignal) LastUpdated(ctx context.Context) (time.Time, error) {
	value, err := r.client.Get(ctx, LastUpdatedKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis get promotion marker failed: %w", err)
	}
	m, err := parseMarker(value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, m.At), nil
}

func (r *RedisSignal) Listen(ctx context.Context, notify func()) error {
	pubsub := r.client.Subscribe(ctx, UpdatedChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe %s failed: %w", UpdatedChannel, err)
	}

	seen := newDedup(r.origin)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m, err := parseMarker(msg.Payload)
			if err != nil {
				r.log.Warn("ignoring promotion marker", zap.Error(err))
				continue
			}
			if seen.accept(m) {
				notify()
			}
		}
	}
}
