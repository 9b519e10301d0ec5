// Package capture produces the raw media of a recording session: paced
// screen frames, PCM audio blocks from one or more devices, low-rate
// webcam frames, and the cursor position. Sources never block on a slow
// consumer, they drop and count instead.
package capture

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// SourceID names a capture device inside one session.
type SourceID string

const (
	SourceScreen   SourceID = "screen"
	SourceMic      SourceID = "mic"
	SourceLoopback SourceID = "loopback"
	SourceWebcam   SourceID = "webcam"
)

// Frame is a single captured screen image.
// Ts is the offset from the session reference clock, stamped by the
// consumer on receive. Frames are handed off single-producer to
// single-consumer and must not be retained after the sink took them.
type Frame struct {
	Image *image.RGBA
	Ts    time.Duration
	Seq   uint64
}

// AudioBlock is a fixed-duration chunk of interleaved PCM samples.
// Ts is non-decreasing per source; blocks of concurrent devices
// interleave in arrival order.
type AudioBlock struct {
	Samples  []int16
	Rate     int
	Channels int
	Ts       time.Duration
	Source   SourceID
}

// Duration is the play time of the block.
func (b *AudioBlock) Duration() time.Duration {
	if b.Rate == 0 || b.Channels == 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.Rate)
}

// DeviceLost reports a capture device that stopped delivering data
// mid-session. It is a degradation, not a session failure.
type DeviceLost struct {
	Source SourceID
	Offset time.Duration
	Err    error
}

// Region is a screen rectangle in virtual desktop coordinates.
type Region struct {
	X, Y, W, H int
}

func (r Region) Bounds() image.Rectangle { return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H) }

func (r Region) String() string { return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y) }

// ErrCaptureUnavailable is returned by the screen source after too many
// consecutive hard grab failures. It is fatal for the session.
var ErrCaptureUnavailable = errors.New("screen capture unavailable")
