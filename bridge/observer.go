package bridge

import "time"

// Observer receives per-attempt telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	// ObserveAttempt is called once per HTTP attempt. outcome is "success" or
	// a Kind string.
	ObserveAttempt(leg, outcome string, elapsed time.Duration)
	// ObserveFallback is called when a request is handed to the fallback
	// leg.
	ObserveFallback()
}

// OutcomeSuccess is the outcome reported for a successful attempt.
const OutcomeSuccess = "success"

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, string, time.Duration) {}
func (nopObserver) ObserveFallback()                             {}
