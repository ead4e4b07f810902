// Package session keeps one cart and one checkout coordinator per shopper session.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/cache"
	"github.com/fjod/cafe_cart/internal/cart"
	"github.com/fjod/cafe_cart/internal/checkout"
	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long an idle session is kept before it expires
	DefaultTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second

	cacheTimeout = time.Second
)

type Lookup func(id int64) (domain.MenuItem, bool)

// Session is the per-shopper state. Cart and Checkout are safe for concurrent use.
type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Coordinator

	lastSeen    atomic.Int64
	cachedAt    atomic.Int64
	unsubscribe func()
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

type Option func(*Registry)

// WithCache persists every cart change and restores carts of sessions that are
// not in memory, for example after a restart.
func WithCache(c cache.CartCache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithCatalog reprices restored carts against the current menu.
func WithCatalog(lookup Lookup) Option {
	return func(r *Registry) { r.lookup = lookup }
}

func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry owns every live session. Sessions are created on first use and expire
// after being idle for the configured TTL.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	orders checkout.OrderClient
	cache  cache.CartCache
	lookup Lookup
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger

	stopCleanup chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewRegistry(orders checkout.OrderClient, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		orders:      orders,
		ttl:         DefaultTTL,
		now:         time.Now,
		log:         logger.OrNop(log),
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.expireIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

// expireIdle drops sessions idle for longer than the TTL. A session with a checkout
// in flight is kept until the attempt settles.
func (r *Registry) expireIdle() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) && !s.Checkout.State().InFlight() {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	}
	if len(expired) > 0 {
		r.log.Debug("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// GetOrCreate returns the session for id, creating it when id is unknown. An id that
// is empty or not a UUID is replaced with a fresh one; the returned session's ID is
// the one the caller must use from now on.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Session, bool) {
	if s, ok := r.Get(id); ok {
		return s, false
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	// restore outside the lock, the cache may be slow
	restored := r.restore(ctx, id)

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		s.touch(r.now())
		return s, false
	}
	s := r.newSession(id, restored)
	r.sessions[id] = s
	r.mu.Unlock()

	logger.WithTrace(ctx, r.log).Debug("session created",
		zap.String("session_id", id),
		zap.Int("restored_lines", len(restored)),
	)
	return s, true
}

// Get returns a live session and marks it as seen.
func (r *Registry) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		now := r.now()
		s.touch(now)
		r.keepCached(s, now)
	}
	return s, ok
}

// keepCached extends the stored cart of a session that is read but not changed, at
// most once per half TTL, so it does not expire while the session is alive.
func (r *Registry) keepCached(s *Session, now time.Time) {
	if r.cache == nil {
		return
	}
	last := s.cachedAt.Load()
	if now.Sub(time.Unix(0, last)) < r.ttl/2 || !s.cachedAt.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := r.cache.Touch(ctx, s.ID); err != nil {
		r.log.Warn("cache touch error", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RepriceAll applies the current menu to every live cart and returns how many changed.
func (r *Registry) RepriceAll(lookup Lookup) int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	changed := 0
	for _, s := range sessions {
		if s.Cart.Reprice(lookup) {
			changed++
		}
	}
	return changed
}

// Close stops the background cleanup and waits for it to finish
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopCleanup)
	})
	r.wg.Wait()
	return nil
}

func (r *Registry) newSession(id string, restored []domain.CartLine) *Session {
	store := cart.New()
	if len(restored) > 0 {
		store.Restore(restored)
		if r.lookup != nil {
			store.Reprice(r.lookup)
		}
	}

	s := &Session{
		ID:       id,
		Cart:     store,
		Checkout: checkout.New(store, r.orders, r.log.With(zap.String("session_id", id))),
	}
	now := r.now()
	s.touch(now)
	s.cachedAt.Store(now.UnixNano())

	if r.cache != nil {
		s.unsubscribe = store.Subscribe(func(lines []domain.CartLine) {
			r.persist(s, lines)
		})
	}
	return s
}

func (r *Registry) restore(ctx context.Context, id string) []domain.CartLine {
	if r.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	lines, err := r.cache.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Warn("cache get error", zap.String("session_id", id), zap.Error(err))
		}
		return nil
	}
	return lines
}

func (r *Registry) persist(s *Session, lines []domain.CartLine) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	var err error
	if len(lines) == 0 {
		err = r.cache.Delete(ctx, s.ID)
	} else {
		err = r.cache.Set(ctx, s.ID, lines)
	}
	if err != nil {
		r.log.Warn("cache persist error", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	s.cachedAt.Store(r.now().UnixNano())
}
