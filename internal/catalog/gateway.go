package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/circuitbreaker"
	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	menuPath     = "/api/menu"
	maxMenuBytes = 4 << 20 // 4MB
	flightKey    = "menu"
)

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Gateway reads the menu from the catalog service and keeps the latest copy.
type Gateway struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
	now     func() time.Time
	sfg     singleflight.Group
	cb      *gobreaker.CircuitBreaker[*domain.Menu]

	fetchSeq atomic.Uint64

	mu        sync.RWMutex
	current   *domain.Menu
	storedSeq uint64
	onRefresh []func(*domain.Menu)
}

// NewGateway creates a gateway for the catalog at baseURL. A nil client gets a
// traced client without its own timeout; callers bound requests with ctx.
func NewGateway(baseURL string, client *http.Client, log *zap.Logger, opts ...Option) *Gateway {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cb = circuitbreaker.New[*domain.Menu](circuitbreaker.Settings{Name: "catalog"}, g.log)
	return g
}

// FetchMenu performs one request and returns the normalized menu without storing it.
// Failures are *UnavailableError; there is no retry. After repeated failures the
// breaker opens and calls fail immediately until it lets a trial request through.
func (g *Gateway) FetchMenu(ctx context.Context) (*domain.Menu, error) {
	menu, err := g.cb.Execute(func() (*domain.Menu, error) {
		return g.fetchMenu(ctx)
	})
	if circuitbreaker.IsOpen(err) {
		return nil, &UnavailableError{Err: err}
	}
	return menu, err
}

func (g *Gateway) fetchMenu(ctx context.Context) (*domain.Menu, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+menuPath, nil)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxMenuBytes))
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("catalog returned status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMenuBytes))
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("read menu body: %w", err)}
	}

	menu, err := Normalize(body, g.now())
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	return menu, nil
}

// Load returns the stored menu. It fetches when none is held yet or when a
// promotion window has opened or closed since the stored menu was fetched.
func (g *Gateway) Load(ctx context.Context) (*domain.Menu, error) {
	if menu := g.Current(); menu != nil && !menu.Expired(g.now()) {
		return menu, nil
	}
	return g.fetchAndStore(ctx)
}

// OnRefresh registers fn to run after every newly stored menu.
func (g *Gateway) OnRefresh(fn func(*domain.Menu)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRefresh = append(g.onRefresh, fn)
}

// Reload always fetches a fresh menu. A fetch already in flight is not joined because
// it may predate the change that triggered the reload.
func (g *Gateway) Reload(ctx context.Context) (*domain.Menu, error) {
	g.sfg.Forget(flightKey)
	return g.fetchAndStore(ctx)
}

// Current returns the last stored menu, or nil.
func (g *Gateway) Current() *domain.Menu {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// FindItem looks up an item in the stored menu.
func (g *Gateway) FindItem(id int64) (domain.MenuItem, bool) {
	return g.Current().FindItem(id)
}

func (g *Gateway) fetchAndStore(ctx context.Context) (*domain.Menu, error) {
	v, err, shared := g.sfg.Do(flightKey, func() (interface{}, error) {
		seq := g.fetchSeq.Add(1)
		menu, err := g.FetchMenu(ctx)
		if err != nil {
			return nil, err
		}
		stored := g.store(seq, menu)
		if stored == menu {
			g.refreshed(menu)
		}
		return stored, nil
	})
	if err != nil {
		logger.WithTrace(ctx, g.log).Warn("menu fetch failed", zap.Error(err), zap.Bool("shared", shared))
		return nil, err
	}
	return v.(*domain.Menu), nil
}

func (g *Gateway) refreshed(menu *domain.Menu) {
	g.mu.RLock()
	hooks := make([]func(*domain.Menu), len(g.onRefresh))
	copy(hooks, g.onRefresh)
	g.mu.RUnlock()

	for _, fn := range hooks {
		fn(menu)
	}
}

// store keeps menu unless a fetch that started later has already been stored,
// in which case the newer menu is returned instead.
func (g *Gateway) store(seq uint64, menu *domain.Menu) *domain.Menu {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq < g.storedSeq {
		g.log.Debug("discarding stale menu", zap.Uint64("seq", seq), zap.Uint64("stored_seq", g.storedSeq))
		return g.current
	}
	g.current = menu
	g.storedSeq = seq
	return menu
}
