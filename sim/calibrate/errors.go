package calibrate

import (
	"errors"
	"fmt"
)

// Calibration errors.
var (
	// ErrConvergence indicates the least-squares solver diverged or ran out
	// of iterations. Callers may retry with a different initial guess.
	ErrConvergence = errors.New("calibrate: solver did not converge")

	// ErrNoObservations indicates a table without a single usable measurement.
	ErrNoObservations = errors.New("calibrate: no observations")

	// ErrInvalidTable indicates a malformed observation table.
	ErrInvalidTable = errors.New("calibrate: invalid observation table")
)

// ConvergenceError wraps ErrConvergence with solver context.
type ConvergenceError struct {
	Policy     Policy
	Iterations int
	Params     []float64
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%v: %s after %d iterations at %v (%s)", ErrConvergence, e.Policy, e.Iterations, e.Params, e.Reason)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrConvergence
}
