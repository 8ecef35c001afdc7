package mapengine

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady       = errors.New("map surface is not ready")
	ErrDisposed       = errors.New("map view has been torn down")
	ErrMarkerNotFound = errors.New("marker not found")
	ErrNoSurface      = errors.New("no surface available for container")
	ErrInitInProgress = errors.New("map initialization already in progress")
)

// InitializationError is recorded when the surface or its base layer cannot be
// made ready. The host may call Retry on the engine.
type InitializationError struct {
	Container string
	Cause     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("map initialization failed for container %q: %v", e.Container, e.Cause)
}

func (e *InitializationError) Unwrap() error { return e.Cause }

// Retryable is always true; initialization failures never poison the engine.
func (e *InitializationError) Retryable() bool { return true }

// DataWarning describes an activity or day that was skipped while composing a
// scene. Index is -1 when the warning concerns the whole day.
type DataWarning struct {
	Day    int    `json:"day"`
	Index  int    `json:"index"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

const (
	ReasonMissingCoordinates = "missing coordinates"
	ReasonEmptyDay           = "day has no activities"
	ReasonDuplicateDay       = "duplicate day number"
	ReasonInvalidDay         = "day number must be positive"
)

func (w DataWarning) String() string {
	if w.Index < 0 {
		return fmt.Sprintf("day %d: %s", w.Day, w.Reason)
	}
	return fmt.Sprintf("day %d activity %d (%s): %s", w.Day, w.Index, w.Title, w.Reason)
}
