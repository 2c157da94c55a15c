package metrics

import (
	"sync"
	"time"
)

// Store keeps the most recent generations in a ring buffer plus running
// per-command totals. It backs the /status endpoint.
//
// Usage:
//
//	store := NewStore(100, "1.2.0", time.Now())
//	store.Record(Generation{Command: "手办化", Status: StatusSuccess, Duration: d})
//	summary := store.Summary(10)
type Store struct {
	mu sync.RWMutex

	ring []Generation
	head int
	size int

	total     int64
	success   int64
	failed    int64
	fallbacks int64
	commands  map[string]*commandStats

	connected bool
	started   time.Time
	version   string
}

type commandStats struct {
	count    int64
	success  int64
	duration time.Duration
}

// NewStore creates a Store remembering capacity generations. A capacity
// below 1 uses 100.
func NewStore(capacity int, version string, started time.Time) *Store {
	if capacity < 1 {
		capacity = 100
	}
	return &Store{
		ring:     make([]Generation, capacity),
		commands: make(map[string]*commandStats),
		started:  started,
		version:  version,
	}
}

// Record adds a finished generation.
func (s *Store) Record(g Generation) {
	if g.At.IsZero() {
		g.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.head] = g
	s.head = (s.head + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}

	s.total++
	switch g.Status {
	case StatusSuccess:
		s.success++
	case StatusFailed, StatusError:
		s.failed++
	}

	stats, ok := s.commands[g.Command]
	if !ok {
		stats = &commandStats{}
		s.commands[g.Command] = stats
	}
	stats.count++
	if g.Status == StatusSuccess {
		stats.success++
	}
	stats.duration += g.Duration
}

// RecordFallback counts a hand-off to the fallback leg.
func (s *Store) RecordFallback() {
	s.mu.Lock()
	s.fallbacks++
	s.mu.Unlock()
}

// SetConnected records whether the chat adapter is connected.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// Recent returns up to limit generations, newest first.
func (s *Store) Recent(limit int) []Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *Store) recentLocked(limit int) []Generation {
	if limit <= 0 || s.size == 0 {
		return []Generation{}
	}
	if limit > s.size {
		limit = s.size
	}
	out := make([]Generation, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + len(s.ring)) % len(s.ring)
		out[i] = s.ring[idx]
	}
	return out
}

// Summary snapshots the totals plus the last recent generations.
func (s *Store) Summary(recent int) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		Version:     s.version,
		Uptime:      time.Since(s.started),
		Connected:   s.connected,
		Total:       s.total,
		Success:     s.success,
		Failed:      s.failed,
		Fallbacks:   s.fallbacks,
		ByCommand:   make(map[string]*CommandSummary, len(s.commands)),
		Recent:      s.recentLocked(recent),
		GeneratedAt: time.Now(),
	}
	for name, stats := range s.commands {
		cs := &CommandSummary{Count: stats.count}
		if stats.count > 0 {
			cs.SuccessRate = float64(stats.success) / float64(stats.count) * 100
			cs.AvgDuration = stats.duration / time.Duration(stats.count)
		}
		sum.ByCommand[name] = cs
	}
	return sum
}
