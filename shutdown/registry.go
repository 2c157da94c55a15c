package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/HydroGest/lmarena/core"
)

// Stage orders cleanup. Lower stages run first.
type Stage int

// Cleanup stages used by the bot.
const (
	// StageAdapter closes the chat connection so no new messages arrive.
	StageAdapter Stage = 10
	// StageServers stops auxiliary HTTP servers such as /metrics.
	StageServers Stage = 20
	// StageStorage flushes and closes the history database.
	StageStorage Stage = 30
	// StageLogs flushes the logger. Always last.
	StageLogs Stage = 90
)

type cleanupEntry struct {
	name  string
	stage Stage
	fn    core.ShutdownFunc
}

// CleanupRegistry holds cleanup functions and runs them once, in stage
// order. Functions in the same stage run in registration order.
type CleanupRegistry struct {
	mu      sync.Mutex
	entries []cleanupEntry
	ran     bool
}

// NewCleanupRegistry creates an empty registry.
func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{}
}

// Register adds fn. Registrations after Run are ignored.
func (r *CleanupRegistry) Register(name string, stage Stage, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ran {
		return
	}
	r.entries = append(r.entries, cleanupEntry{name: name, stage: stage, fn: fn})
}

// Run calls every function, even after failures, and returns their errors
// prefixed with the function name. Subsequent calls return nil.
func (r *CleanupRegistry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	ordered := r.orderedLocked()
	r.mu.Unlock()

	var errs []error
	for _, entry := range ordered {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		}
	}
	return errs
}

// Names lists registered functions in execution order.
func (r *CleanupRegistry) Names() []string {
	r.mu.Lock()
	ordered := r.orderedLocked()
	r.mu.Unlock()

	names := make([]string, len(ordered))
	for i, entry := range ordered {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered functions.
func (r *CleanupRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *CleanupRegistry) orderedLocked() []cleanupEntry {
	ordered := make([]cleanupEntry, len(r.entries))
	copy(ordered, r.entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].stage < ordered[j].stage
	})
	return ordered
}
