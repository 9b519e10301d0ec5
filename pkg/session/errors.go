package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/recorder"
)

// ErrAlreadyRecording rejects a start while another session is still
// active. The running session is unaffected.
var ErrAlreadyRecording = errors.New("already recording")

// ValidationError rejects a start before anything irreversible
// happened. The controller stays idle and nothing is left half open.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %v: %v", e.Field, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// DeviceLostError marks an audio device that disappeared mid-session,
// with the offset of its last delivered block. The session keeps going
// without the device.
type DeviceLostError struct {
	Source capture.SourceID
	Offset time.Duration
	Err    error
}

func (e *DeviceLostError) Error() string {
	return fmt.Sprintf("device %v lost at %v", e.Source, e.Offset)
}
func (e *DeviceLostError) Unwrap() error { return e.Err }

// Write and finalize failures keep their recorder types, aliased here
// so callers can match the whole failure surface in one place.
type (
	FatalIOError        = recorder.FatalIOError
	FinalizeFailedError = recorder.FinalizeFailedError
)
