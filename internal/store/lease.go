package store

import "sync"

// Leaser hands out exclusive in-process leases keyed by ASIN. A lease
// serializes workers that would otherwise race on the same book identity,
// such as two searches upgrading the same provisional record.
type Leaser struct {
	mu     sync.Mutex
	leases map[string]*lease
}

type lease struct {
	mu   sync.Mutex
	refs int
}

// NewLeaser creates an empty leaser.
func NewLeaser() *Leaser {
	return &Leaser{leases: make(map[string]*lease)}
}

// Lease blocks until the exclusive lease for the key is acquired and
// returns the release function. Entries are reference counted so the map
// does not grow with the key space.
func (l *Leaser) Lease(key string) func() {
	l.mu.Lock()
	entry, ok := l.leases[key]
	if !ok {
		entry = &lease{}
		l.leases[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.leases, key)
			}
			l.mu.Unlock()
		})
	}
}
