package nbody

import (
	"errors"
	"fmt"
)

// Domain errors. None of them is recoverable: a run that hits one is discarded.
var (
	// ErrConfiguration indicates invalid launch parameters (N, DIM, dt, end time, worker count).
	ErrConfiguration = errors.New("nbody: invalid configuration")

	// ErrAllocation indicates an ensemble or shard buffer could not be allocated.
	ErrAllocation = errors.New("nbody: buffer allocation failed")

	// ErrCollectiveMismatch indicates a rank supplied a buffer of the wrong length to a collective.
	ErrCollectiveMismatch = errors.New("nbody: collective buffer length mismatch")

	// ErrInvalidState indicates a NaN or Inf appeared in the ensemble.
	ErrInvalidState = errors.New("nbody: invalid state (NaN or Inf detected)")
)

// ConfigError describes a rejected launch parameter.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("nbody: invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// AllocationError reports a buffer that was refused or could not be sized.
type AllocationError struct {
	What string
	Size int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("nbody: cannot allocate %s of %d slots", e.What, e.Size)
}

func (e *AllocationError) Unwrap() error { return ErrAllocation }

// CollectiveError reports a length mismatch detected by a collective operation.
type CollectiveError struct {
	Op   string
	Rank int
	Want int
	Got  int
}

func (e *CollectiveError) Error() string {
	return fmt.Sprintf("nbody: %s on rank %d: want %d slots, got %d", e.Op, e.Rank, e.Want, e.Got)
}

func (e *CollectiveError) Unwrap() error { return ErrCollectiveMismatch }

// RunError wraps a failure with the iteration it happened in.
type RunError struct {
	Iteration int
	Time      float64
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("iteration %d (t=%.4f): %v", e.Iteration, e.Time, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
