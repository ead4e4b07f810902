package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/pricing"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidItem     = errors.New("menu item id is required")
)

// Observer receives the cart contents after every change.
type Observer func(lines []domain.CartLine)

type subscription struct {
	id int
	fn Observer
}

// Store owns one cart. Lines are kept in insertion order and there is at most one
// line per menu item.
type Store struct {
	mu        sync.RWMutex
	lines     map[int64]*domain.CartLine
	order     []int64
	observers []subscription
	nextSubID int
	version   uint64
	now       func() time.Time

	// notifyMu serializes delivery; delivered is the newest version handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

func New() *Store {
	return &Store{
		lines: make(map[int64]*domain.CartLine),
		now:   time.Now,
	}
}

// Add puts quantity units of item in the cart. An existing line accumulates quantity;
// a new line copies the item's display fields.
func (s *Store) Add(item domain.MenuItem, quantity int) error {
	if item.ID == 0 {
		return ErrInvalidItem
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	if line, ok := s.lines[item.ID]; ok {
		line.Quantity += quantity
	} else {
		s.lines[item.ID] = &domain.CartLine{
			MenuItemID:      item.ID,
			Quantity:        quantity,
			Name:            item.Name,
			PriceCents:      item.PriceCents,
			DiscountPercent: copyPercent(item.DiscountPercent),
			AddedAt:         s.now(),
		}
		s.order = append(s.order, item.ID)
	}
	version, snapshot := s.changedLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
	return nil
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
// Observers are not notified when nothing changed.
func (s *Store) UpdateQuantity(itemID int64, quantity int) {
	if quantity <= 0 {
		s.Remove(itemID)
		return
	}

	s.mu.Lock()
	line, ok := s.lines[itemID]
	if !ok || line.Quantity == quantity {
		s.mu.Unlock()
		return
	}
	line.Quantity = quantity
	version, snapshot := s.changedLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
}

func (s *Store) Remove(itemID int64) {
	s.mu.Lock()
	if _, ok := s.lines[itemID]; !ok {
		s.mu.Unlock()
		return
	}
	s.removeLocked(itemID)
	version, snapshot := s.changedLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
}

// Deduct takes ordered quantities out of the cart. Lines that drop to zero are
// removed; units added after the order was built stay in the cart.
func (s *Store) Deduct(items []domain.CheckoutItem) {
	s.mu.Lock()
	changed := false
	for _, it := range items {
		line, ok := s.lines[it.MenuItemID]
		if !ok || it.Qty < 1 {
			continue
		}
		changed = true
		if line.Quantity > it.Qty {
			line.Quantity -= it.Qty
			continue
		}
		s.removeLocked(it.MenuItemID)
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	version, snapshot := s.changedLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
}

func (s *Store) Clear() {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	s.lines = make(map[int64]*domain.CartLine)
	s.order = nil
	version, snapshot := s.changedLocked()
	s.mu.Unlock()

	s.notify(version, snapshot)
}

// Snapshot returns a copy of the lines in insertion order.
func (s *Store) Snapshot() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Total is the advisory cart total in cents.
func (s *Store) Total() int64 {
	return pricing.CartTotal(s.Snapshot())
}

// Reprice refreshes the copied display fields of every line from lookup. Lines whose
// item is no longer in the catalog are kept as they are. It reports whether anything changed.
func (s *Store) Reprice(lookup func(id int64) (domain.MenuItem, bool)) bool {
	s.mu.Lock()
	changed := false
	for _, id := range s.order {
		item, ok := lookup(id)
		if !ok {
			continue
		}
		line := s.lines[id]
		if line.Name != item.Name || line.PriceCents != item.PriceCents || !samePercent(line.DiscountPercent, item.DiscountPercent) {
			line.Name = item.Name
			line.PriceCents = item.PriceCents
			line.DiscountPercent = copyPercent(item.DiscountPercent)
			changed = true
		}
	}
	var (
		version  uint64
		snapshot []domain.CartLine
	)
	if changed {
		version, snapshot = s.changedLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify(version, snapshot)
	}
	return changed
}

// Restore replaces the cart contents with previously persisted lines without
// notifying observers. Duplicate ids are merged and non-positive quantities dropped.
func (s *Store) Restore(lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	s.lines = make(map[int64]*domain.CartLine, len(lines))
	s.order = s.order[:0]
	for _, l := range lines {
		if l.MenuItemID == 0 || l.Quantity < 1 {
			continue
		}
		if existing, ok := s.lines[l.MenuItemID]; ok {
			existing.Quantity += l.Quantity
			continue
		}
		line := l
		line.DiscountPercent = copyPercent(l.DiscountPercent)
		s.lines[l.MenuItemID] = &line
		s.order = append(s.order, l.MenuItemID)
	}
}

// Subscribe registers fn to be called synchronously, in registration order, after each
// change that has not already been overtaken by a newer one. The returned function
// removes the registration and is safe to call twice.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// notify delivers one change to the observers. Deliveries never overlap, and a
// snapshot older than one already delivered is dropped, so the last snapshot an
// observer sees is always the current cart. Observers may read the store but must
// not mutate it.
func (s *Store) notify(version uint64, snapshot []domain.CartLine) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version

	s.mu.RLock()
	observers := make([]subscription, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, sub := range observers {
		lines := make([]domain.CartLine, len(snapshot))
		copy(lines, snapshot)
		sub.fn(lines)
	}
}

// changedLocked records a mutation and returns its version with the new contents.
func (s *Store) changedLocked() (uint64, []domain.CartLine) {
	s.version++
	return s.version, s.snapshotLocked()
}

func (s *Store) removeLocked(itemID int64) {
	delete(s.lines, itemID)
	for i, id := range s.order {
		if id == itemID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Store) snapshotLocked() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(s.order))
	for _, id := range s.order {
		line := *s.lines[id]
		line.DiscountPercent = copyPercent(line.DiscountPercent)
		out = append(out, line)
	}
	return out
}

func copyPercent(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func samePercent(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
