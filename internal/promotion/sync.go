package promotion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fjod/cafe_cart/internal/logger"
	"go.uber.org/zap"
)

type subscriber struct {
	id     int
	fn     func()
	active atomic.Bool
}

// Sync funnels every Signal into the registered refresh callbacks. Nothing is
// refreshed until a signal arrives; each signal event invokes every subscriber once.
// Callbacks must tolerate redundant calls since transports may deliver the same
// change more than once.
type Sync struct {
	signals []Signal
	log     *zap.Logger

	mu     sync.Mutex
	subs   []*subscriber
	nextID int

	dispatchMu sync.Mutex
}

func NewSync(log *zap.Logger, signals ...Signal) *Sync {
	return &Sync{signals: signals, log: logger.OrNop(log)}
}

// Subscribe registers refresh. After unsubscribe returns, refresh is not started again.
func (s *Sync) Subscribe(refresh func()) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	sub := &subscriber{id: s.nextID, fn: refresh}
	sub.active.Store(true)
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.subs {
			if other.id == sub.id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Run listens on every signal until ctx is done. Listener failures are logged and
// returned once all listeners have stopped.
func (s *Sync) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sig := range s.signals {
		wg.Add(1)
		go func(sig Signal) {
			defer wg.Done()
			if err := sig.Listen(ctx, s.dispatch); err != nil {
				s.log.Error("promotion signal stopped", zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(sig)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Sync) dispatch() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	s.log.Debug("promotions changed", zap.Int("subscribers", len(subs)))
	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn()
		}
	}
}

// Notifier announces an admin promotion change on the in-process broadcaster and on
// every cross-process publisher, so all instances including this one refresh.
type Notifier struct {
	local  *Broadcaster
	remote []Publisher
}

func NewNotifier(local *Broadcaster, remote ...Publisher) *Notifier {
	return &Notifier{local: local, remote: remote}
}

func (n *Notifier) Notify(ctx context.Context) error {
	var errs []error
	if n.local != nil {
		errs = append(errs, n.local.Publish(ctx))
	}
	for _, p := range n.remote {
		errs = append(errs, p.Publish(ctx))
	}
	return errors.Join(errs...)
}
