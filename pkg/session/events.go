package session

import "time"

type EventKind uint8

const (
	EventDeviceLost EventKind = iota
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventDeviceLost:
		return "device-lost"
	case EventFatal:
		return "fatal"
	}
	return "unknown"
}

// Event is one journaled incident. Offset is measured against the
// session reference clock.
type Event struct {
	Offset time.Duration
	Kind   EventKind
	Err    error
}
