package slotarbiter

import "sync"

// Arbiter is a set of cluster-unique slot names, safe for concurrent use.
type Arbiter struct {
	mu    sync.Mutex
	slots map[string]struct{}
}

// New returns an empty Arbiter.
func New() *Arbiter {
	return &Arbiter{slots: make(map[string]struct{})}
}

// AssignSlot atomically inserts name and reports whether it was absent.
// A false return means the slot is already held and the caller's
// submission must be treated as a duplicate.
func (a *Arbiter) AssignSlot(name string) bool {
	if name == "" {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, held := a.slots[name]; held {
		return false
	}
	a.slots[name] = struct{}{}
	return true
}

// ReleaseSlot removes name from the set. It is idempotent: releasing a
// slot that isn't held is a no-op.
func (a *Arbiter) ReleaseSlot(name string) {
	if name == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.slots, name)
}

// Held reports whether name is currently reserved. It exists for tests
// and metrics; the core never branches on it directly.
func (a *Arbiter) Held(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.slots[name]
	return ok
}

// Count returns the number of slots currently held.
func (a *Arbiter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}
