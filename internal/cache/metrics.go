package cache

import "sync"

// Metrics tracks cache effectiveness counters. It carries its own lock so
// reading metrics never contends with cache operations in a way that could
// deadlock.
type Metrics struct {
	mu        sync.Mutex
	hits      uint64
	misses    uint64
	evictions uint64
}

// Snapshot is a point-in-time copy of the counters plus the derived hit
// rate as a percentage.
type Snapshot struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

func (m *Metrics) hit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *Metrics) miss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

func (m *Metrics) eviction() {
	m.mu.Lock()
	m.evictions++
	m.mu.Unlock()
}

func (m *Metrics) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total) * 100
	}
	return s
}
