// Package shutdown coordinates graceful shutdown of the bot: it owns the
// root context every chat invocation runs under, tracks invocations in
// flight, and runs cleanup in stage order once they drain.
package shutdown

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTrackerClosed is returned when an invocation starts after shutdown began.
var ErrTrackerClosed = errors.New("invocation tracker is closed")

// ErrWaitTimeout is returned when Wait times out before all invocations end.
var ErrWaitTimeout = errors.New("wait timeout: invocations did not finish in time")

// Invocation describes one tracked unit of work.
type Invocation struct {
	Name    string
	Started time.Time
}

// InvocationTracker counts in-flight invocations and remembers what they
// are, so a slow shutdown can say what it is waiting for.
//
// Usage:
//
//	tracker := NewInvocationTracker()
//
//	id, ok := tracker.Begin("手办化")
//	if !ok {
//	    return // shutting down
//	}
//	defer tracker.End(id)
//
//	// During shutdown:
//	tracker.Close()
//	if err := tracker.Wait(30 * time.Second); err != nil {
//	    log.Println("still running:", tracker.Snapshot())
//	}
type InvocationTracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	nextID uint64
	active map[uint64]Invocation
	closed bool
}

// NewInvocationTracker creates an open tracker.
func NewInvocationTracker() *InvocationTracker {
	return &InvocationTracker{active: make(map[uint64]Invocation)}
}

// Begin registers an invocation. ok is false once the tracker is closed; in
// that case End must not be called.
func (t *InvocationTracker) Begin(name string) (id uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, false
	}
	t.nextID++
	t.active[t.nextID] = Invocation{Name: name, Started: time.Now()}
	t.wg.Add(1)
	return t.nextID, true
}

// End marks the invocation finished. Unknown ids are ignored.
func (t *InvocationTracker) End(id uint64) {
	t.mu.Lock()
	_, ok := t.active[id]
	delete(t.active, id)
	t.mu.Unlock()

	if ok {
		t.wg.Done()
	}
}

// Wait blocks until every invocation has ended or timeout elapses.
func (t *InvocationTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Close stops new invocations from starting. Running ones continue.
func (t *InvocationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Active returns the number of running invocations.
func (t *InvocationTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Snapshot lists running invocations, oldest first.
func (t *InvocationTracker) Snapshot() []Invocation {
	t.mu.Lock()
	list := make([]Invocation, 0, len(t.active))
	for _, inv := range t.active {
		list = append(list, inv)
	}
	t.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Started.Before(list[j].Started)
	})
	return list
}

// IsClosed reports whether Close has been called.
func (t *InvocationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
