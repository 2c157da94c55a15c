package handlers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrShuttingDown is reported when an invocation is refused because the bot
// is stopping.
var ErrShuttingDown = errors.New("invocation rejected: shutting down")

// Launcher starts tracked invocations. *shutdown.Manager implements it: its
// context ends every invocation when the bot stops.
type Launcher interface {
	Go(ctx context.Context, name string, fn func(context.Context) error) bool
}

// PanicError carries a recovered panic.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Safely runs fn and converts a panic into a *PanicError.
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
