package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/cafe_cart/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client), mr
}

func pct(v int) *int { return &v }

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	sessionID := "session-123"

	stored := cachedCart{
		SessionID: sessionID,
		Lines: []domain.CartLine{
			{MenuItemID: 1, Quantity: 2, Name: "Latte", PriceCents: 1000, DiscountPercent: pct(25)},
			{MenuItemID: 2, Quantity: 3, Name: "Croissant", PriceCents: 350},
		},
		UpdatedAt: time.Now(),
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(sessionID), string(payload)))

	lines, err := cache.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].MenuItemID)
	assert.Equal(t, 2, lines[0].Quantity)
	require.NotNil(t, lines[0].DiscountPercent)
	assert.Equal(t, 25, *lines[0].DiscountPercent)
	assert.Nil(t, lines[1].DiscountPercent)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	lines, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, lines)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("session-1"), `{"session_id":"sess`))

	_, err := cache.Get(context.Background(), "session-1")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestGet_RedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "session-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestSet_RoundTrip(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	sessionID := "session-456"

	lines := []domain.CartLine{{MenuItemID: 10, Quantity: 5, Name: "Mocha", PriceCents: 450}}
	require.NoError(t, cache.Set(ctx, sessionID, lines))

	raw, err := mr.Get(cacheKey(sessionID))
	require.NoError(t, err)
	var stored cachedCart
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, sessionID, stored.SessionID)
	assert.False(t, stored.UpdatedAt.IsZero())

	got, err := cache.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].MenuItemID)
	assert.Equal(t, "Mocha", got[0].Name)
}

func TestSet_TTLFollowsSessionTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	require.NoError(t, cache.Set(context.Background(), "session-789", nil))

	ttl := mr.TTL(cacheKey("session-789"))
	assert.GreaterOrEqual(t, ttl, DefaultTTL, "TTL should be at least the session TTL")
	assert.Less(t, ttl, DefaultTTL+maxJitter, "TTL should be below session TTL plus max jitter")
}

func TestWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewRedisCache(client, WithTTL(2*time.Hour))

	require.NoError(t, cache.Set(context.Background(), "session-1", nil))
	assert.GreaterOrEqual(t, mr.TTL(cacheKey("session-1")), 2*time.Hour)
}

func TestGet_ExtendsExpiry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "session-1", []domain.CartLine{{MenuItemID: 1, Quantity: 1}}))

	mr.FastForward(DefaultTTL - time.Minute)
	_, err := cache.Get(ctx, "session-1")
	require.NoError(t, err)

	mr.FastForward(10 * time.Minute)
	lines, err := cache.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestGet_OtherSessionPayloadIsMiss(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("session-1"), `{"session_id":"session-2","lines":[{"menu_item_id":1,"qty":1}]}`))

	_, err := cache.Get(context.Background(), "session-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTouch(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "session-1", []domain.CartLine{{MenuItemID: 1, Quantity: 1}}))

	mr.FastForward(DefaultTTL - time.Minute)
	require.NoError(t, cache.Touch(ctx, "session-1"))
	assert.GreaterOrEqual(t, mr.TTL(cacheKey("session-1")), DefaultTTL)

	// nothing stored is fine
	require.NoError(t, cache.Touch(ctx, "session-unknown"))
	assert.False(t, mr.Exists(cacheKey("session-unknown")))
}

func TestDelete_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("session-999"), `{"lines":[]}`))
	assert.True(t, mr.Exists(cacheKey("session-999")))

	require.NoError(t, cache.Delete(context.Background(), "session-999"))
	assert.False(t, mr.Exists(cacheKey("session-999")))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _ := setupTestRedis(t)

	// Deleting non-existent key should not error
	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", cacheKey("test123"))
}
