package shutdown

import (
	"os"
	"sync"
	"syscall"

	"github.com/HydroGest/lmarena/core"
)

// SignalCounter remembers the first shutdown signal and fires onForce when
// signals keep coming: the first one starts a graceful shutdown, the
// forceAfter-th one gives up on it.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func()
}

// NewSignalCounter creates a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Observe records sig and returns how many signals have arrived.
func (s *SignalCounter) Observe(sig os.Signal) int {
	s.mu.Lock()
	s.count++
	if s.first == nil {
		s.first = sig
	}
	count := s.count
	force := s.forceAfter > 0 && count >= s.forceAfter
	onForce := s.onForce
	s.mu.Unlock()

	if force && onForce != nil {
		onForce()
	}
	return count
}

// Count returns how many signals have arrived.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// ExitCode maps the first signal to the conventional exit code:
// 130 for SIGINT, 143 for SIGTERM, 0 when no signal arrived.
func (s *SignalCounter) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.first {
	case nil:
		return core.ExitCodeSuccess
	case os.Interrupt:
		return core.ExitCodeSIGINT
	case syscall.SIGTERM:
		return core.ExitCodeSIGTERM
	default:
		return core.ExitCodeError
	}
}
