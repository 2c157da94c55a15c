package shutdown

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"syscall"

	"github.com/HydroGest/lmarena/core"

	"go.uber.org/zap"
)

// Closer adapts an io.Closer, such as the history database or the chat
// connection, to a cleanup function.
//
// Usage:
//
//	manager.Register("history-db", StageStorage, shutdown.Closer(logger, "history-db", db))
func Closer(logger *zap.Logger, name string, c io.Closer) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if c == nil {
			return nil
		}
		if err := c.Close(); err != nil {
			return err
		}
		logger.Info("Closed", zap.String("component", name))
		return nil
	}
}

// HTTPServer gracefully stops srv within the cleanup deadline.
func HTTPServer(logger *zap.Logger, name string, srv *http.Server) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if srv == nil {
			return nil
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("HTTP server did not stop cleanly, closing",
				zap.String("server", name),
				zap.Error(err),
			)
			return srv.Close()
		}
		logger.Info("Stopped HTTP server", zap.String("server", name))
		return nil
	}
}

// SyncLogger flushes a logger. Errors from syncing a terminal are ignored.
func SyncLogger(sync func() error) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := sync()
		if err == nil || isTerminalSyncError(err) {
			return nil
		}
		return err
	}
}

// Syncing stdout fails with EINVAL or ENOTTY when it is a terminal.
func isTerminalSyncError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
