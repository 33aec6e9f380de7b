package notify

import (
	"context"
	"sync"
	"time"
)

// MemoryFeed keeps notifications in process. Expired entries are hidden on
// read and removed by Sweep.
type MemoryFeed struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string][]Notification
}

// NewMemoryFeed creates a feed whose notifications live for ttl.
func NewMemoryFeed(ttl time.Duration) *MemoryFeed {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryFeed{ttl: ttl, now: time.Now, items: make(map[string][]Notification)}
}

// WithClock overrides the time source (tests).
func (f *MemoryFeed) WithClock(now func() time.Time) *MemoryFeed {
	if now != nil {
		f.now = now
	}
	return f
}

// Show implements Presenter.
func (f *MemoryFeed) Show(ctx context.Context, message string, severity Severity) (Notification, error) {
	n, err := build(ctx, message, severity, f.now(), f.ttl)
	if err != nil {
		return Notification{}, err
	}
	f.mu.Lock()
	f.items[n.SessionID] = append(f.items[n.SessionID], n)
	f.mu.Unlock()
	return n, nil
}

func (f *MemoryFeed) Active(_ context.Context, sessionID string) ([]Notification, error) {
	now := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()

	active := make([]Notification, 0, len(f.items[sessionID]))
	for _, n := range f.items[sessionID] {
		if !n.Expired(now) {
			active = append(active, n)
		}
	}
	return active, nil
}

func (f *MemoryFeed) Dismiss(_ context.Context, sessionID, id string) error {
	now := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.items[sessionID]
	for i, n := range list {
		if n.ID != id {
			continue
		}
		if n.Expired(now) {
			break
		}
		f.items[sessionID] = append(list[:i:i], list[i+1:]...)
		return nil
	}
	return ErrNotFound
}

// Sweep drops expired notifications and returns how many were removed.
func (f *MemoryFeed) Sweep(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for sessionID, list := range f.items {
		kept := list[:0]
		for _, n := range list {
			if n.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			delete(f.items, sessionID)
			continue
		}
		f.items[sessionID] = kept
	}
	return removed
}

// Forget drops every notification of a session.
func (f *MemoryFeed) Forget(sessionID string) {
	f.mu.Lock()
	delete(f.items, sessionID)
	f.mu.Unlock()
}

var _ Feed = (*MemoryFeed)(nil)
