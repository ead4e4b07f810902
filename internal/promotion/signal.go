// Package promotion propagates "promotions changed" signals between and within
// gateway instances and turns them into catalog refreshes.
package promotion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Signal is a source of promotion change notifications.
type Signal interface {
	// Listen calls notify once per observed change until ctx is done.
	Listen(ctx context.Context, notify func()) error
}

// Publisher announces a promotion change to other instances.
type Publisher interface {
	Publish(ctx context.Context) error
}

// marker is the shared "promotions last updated" value: the origin instance and the
// update time in unix nanoseconds.
type marker struct {
	Origin string
	At     int64
}

func (m marker) String() string {
	return fmt.Sprintf("%s:%d", m.Origin, m.At)
}

func parseMarker(s string) (marker, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return marker{}, fmt.Errorf("invalid promotion marker %q", s)
	}
	at, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return marker{}, fmt.Errorf("invalid promotion marker %q: %w", s, err)
	}
	return marker{Origin: s[:idx], At: at}, nil
}

// dedup drops markers written by this instance and markers not newer than the
// last one accepted from the same origin.
type dedup struct {
	origin   string
	lastSeen map[string]int64
}

func newDedup(origin string) *dedup {
	return &dedup{origin: origin, lastSeen: make(map[string]int64)}
}

func (d *dedup) accept(m marker) bool {
	if m.Origin == d.origin {
		return false
	}
	if m.At <= d.lastSeen[m.Origin] {
		return false
	}
	d.lastSeen[m.Origin] = m.At
	return true
}
