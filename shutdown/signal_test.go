package shutdown

import (
	"os"
	"syscall"
	"testing"

	"github.com/HydroGest/lmarena/core"
)

func TestSignalCounter_ForceOnSecond(t *testing.T) {
	forced := 0
	counter := NewSignalCounter(2, func() { forced++ })

	if n := counter.Observe(os.Interrupt); n != 1 {
		t.Errorf("first Observe = %d, want 1", n)
	}
	if forced != 0 {
		t.Error("first signal must not force")
	}
	counter.Observe(syscall.SIGTERM)
	if forced != 1 {
		t.Errorf("second signal should force, forced = %d", forced)
	}
	if counter.Count() != 2 {
		t.Errorf("Count = %d, want 2", counter.Count())
	}
}

func TestSignalCounter_NilCallback(t *testing.T) {
	counter := NewSignalCounter(1, nil)
	counter.Observe(os.Interrupt) // must not panic
}

func TestSignalCounter_ExitCode(t *testing.T) {
	tests := []struct {
		name   string
		signal os.Signal
		want   int
	}{
		{"no signal", nil, core.ExitCodeSuccess},
		{"interrupt", os.Interrupt, core.ExitCodeSIGINT},
		{"terminate", syscall.SIGTERM, core.ExitCodeSIGTERM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := NewSignalCounter(0, nil)
			if tt.signal != nil {
				counter.Observe(tt.signal)
				// The first signal decides the exit code.
				counter.Observe(syscall.SIGTERM)
			}
			if got := counter.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
