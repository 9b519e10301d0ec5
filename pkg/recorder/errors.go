package recorder

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by writes into a finalized recording.
var ErrClosed = errors.New("recording is closed")

// FatalIOError is a write failure that survived the retry. The session
// cannot continue past it.
type FatalIOError struct {
	Op  string
	Err error
}

func (e *FatalIOError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

func (e *FatalIOError) Unwrap() error { return e.Err }

// FinalizeFailedError reports a failed mux. The interim files named
// here are kept on disk so the recording is recoverable by hand.
type FinalizeFailedError struct {
	Err error
	// preserved interim artifacts
	VideoPath string
	AudioPath string
}

func (e *FinalizeFailedError) Error() string {
	if e.AudioPath != "" {
		return fmt.Sprintf("finalize failed: %v (kept %s, %s)", e.Err, e.VideoPath, e.AudioPath)
	}
	return fmt.Sprintf("finalize failed: %v (kept %s)", e.Err, e.VideoPath)
}

func (e *FinalizeFailedError) Unwrap() error { return e.Err }
