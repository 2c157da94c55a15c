package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/HydroGest/lmarena/core"

	"go.uber.org/zap"
)

// Manager owns the bot's lifetime.
//
// Its Context is cancelled by the first SIGINT/SIGTERM or by Trigger; every
// chat invocation runs under a context derived from it, so in-progress
// retries stop promptly. Shutdown then waits for invocations to drain and
// runs cleanup by stage. A second signal exits immediately.
//
// Usage:
//
//	manager := shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(30*time.Second))
//	manager.Register("history-db", shutdown.StageStorage, shutdown.Closer(logger.Zap(), "history-db", db))
//	manager.Start()
//
//	// Per chat message:
//	manager.Go(ctx, "手办化", func(ctx context.Context) error {
//	    return handler.Run(ctx, session, cmd)
//	})
//
//	<-manager.Context().Done()
//	_ = manager.Shutdown()
//	os.Exit(manager.ExitCode())
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelCauseFunc

	tracker  *InvocationTracker
	registry *CleanupRegistry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds how long Shutdown waits for invocations and cleanup.
// Default is 60 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithForceExit replaces the action taken on a second signal, which is
// os.Exit(1) by default.
func WithForceExit(fn func()) ManagerOption {
	return func(m *Manager) {
		m.signals = NewSignalCounter(2, fn)
	}
}

// ErrShutdownRequested is the cancellation cause set by Trigger.
var ErrShutdownRequested = errors.New("shutdown requested")

// NewManager creates a Manager. Call Start to listen for signals.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancelCause(context.Background())

	m := &Manager{
		logger:   logger,
		timeout:  60 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewInvocationTracker(),
		registry: NewCleanupRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Received second signal, forcing immediate shutdown")
		os.Exit(core.ExitCodeError)
	})

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup function for stage.
func (m *Manager) Register(name string, stage Stage, fn core.ShutdownFunc) {
	m.registry.Register(name, stage, fn)
	m.logger.Debug("Registered shutdown handler",
		zap.String("name", name),
		zap.Int("stage", int(stage)),
	)
}

// Start listens for SIGINT and SIGTERM. Calling it again is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()

	m.logger.Info("Shutdown manager started, listening for signals")
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Observe(sig) == 1 {
		m.logger.Info("Received shutdown signal, initiating graceful shutdown",
			zap.String("signal", sig.String()),
		)
		m.cancel(fmt.Errorf("signal %s", sig))
	}
}

// Trigger begins shutdown without a signal, e.g. when the service manager
// asks the bot to stop.
func (m *Manager) Trigger() {
	m.cancel(ErrShutdownRequested)
}

// Shutdown cancels the context if needed, stops new invocations, waits up
// to the timeout for running ones, then runs cleanup. It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel(ErrShutdownRequested)
	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	startTime := time.Now()
	m.logger.Info("Initiating graceful shutdown",
		zap.Duration("timeout", m.timeout),
		zap.Int("registered_handlers", m.registry.Count()),
	)

	m.tracker.Close()
	if active := m.tracker.Active(); active > 0 {
		m.logger.Info("Waiting for in-flight invocations", zap.Int("active_count", active))
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		names := make([]string, 0)
		for _, inv := range m.tracker.Snapshot() {
			names = append(names, inv.Name)
		}
		m.logger.Warn("Timeout waiting for in-flight invocations",
			zap.Duration("waited", time.Since(startTime)),
			zap.Strings("still_running", names),
		)
	}

	remaining := m.timeout - time.Since(startTime)
	if remaining < time.Second {
		remaining = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Info("Executing cleanup functions", zap.Strings("handlers", m.registry.Names()))
	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("Cleanup function failed", zap.Error(err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %w", errors.Join(errs...))
	}
	m.logger.Info("Graceful shutdown completed", zap.Duration("duration", time.Since(startTime)))
	return nil
}

// Wait blocks until shutdown begins.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// Invoke runs fn as a tracked invocation. fn's context ends when either ctx
// or the manager's context does. Returns ErrTrackerClosed without calling fn
// once shutdown has begun.
func (m *Manager) Invoke(ctx context.Context, name string, fn func(context.Context) error) error {
	id, ok := m.tracker.Begin(name)
	if !ok {
		m.logger.Debug("Invocation rejected, system shutting down", zap.String("invocation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.End(id)

	invCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(m.ctx, func() {
		cancel(context.Cause(m.ctx))
	})
	defer stop()

	if err := invCtx.Err(); err != nil {
		return err
	}
	return fn(invCtx)
}

// Go runs Invoke in a new goroutine and logs unexpected errors. It reports
// false, without starting anything, when shutdown has begun.
func (m *Manager) Go(ctx context.Context, name string, fn func(context.Context) error) bool {
	if m.IsShuttingDown() {
		m.logger.Debug("Async invocation rejected, system shutting down", zap.String("invocation", name))
		return false
	}

	go func() {
		err := m.Invoke(ctx, name, fn)
		if err != nil && !errors.Is(err, ErrTrackerClosed) && !errors.Is(err, context.Canceled) {
			m.logger.Error("Invocation failed",
				zap.String("invocation", name),
				zap.Error(err),
			)
		}
	}()
	return true
}

// ActiveInvocations returns the number of running invocations.
func (m *Manager) ActiveInvocations() int {
	return m.tracker.Active()
}

// IsShuttingDown reports whether shutdown has begun.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.tracker.IsClosed() || m.ctx.Err() != nil
}

// RegisteredHandlers lists cleanup functions in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}

// ExitCode is the process exit code implied by how shutdown started.
func (m *Manager) ExitCode() int {
	return m.signals.ExitCode()
}
