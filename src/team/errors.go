package team

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDesigns is returned when a run has no design uploads.
	ErrNoDesigns = errors.New("Please upload at least one design to analyze.")
	// ErrNoImages is returned when every upload failed to stage.
	ErrNoImages = errors.New("No images were successfully processed. Please check your uploads.")
	// ErrNoOutput marks a reasoning loop that finished without any text.
	ErrNoOutput = errors.New("No output generated")
	// ErrSessionClosed is returned by dispatches on a closed session.
	ErrSessionClosed = errors.New("session is closed")
)

// InitializationError reports a session that could not be built. None of
// the profiles are usable when it is returned.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("Error initializing agents: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// DispatchError is the failure of a single profile run. It never aborts
// sibling dispatches.
type DispatchError struct {
	Type AnalysisType
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("Error during analysis: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
