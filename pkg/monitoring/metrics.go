package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters. All dropped/skipped work is counted instead of
// blocking capture, these are the numbers that prove it.
var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "video", Name: "frames_captured_total",
		Help: "Frames grabbed from the screen.",
	})
	FramesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "video", Name: "frames_encoded_total",
		Help: "Frames handed to the encoder sink.",
	})
	FramesEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "video", Name: "frames_empty_total",
		Help: "Capture attempts that returned no frame.",
	})
	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "video", Name: "ticks_skipped_total",
		Help: "Paced ticks skipped because the loop fell behind.",
	})
	AudioBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "audio", Name: "blocks_total",
		Help: "Audio blocks read from devices.",
	})
	AudioDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "audio", Name: "blocks_dropped_total",
		Help: "Audio blocks dropped on queue overflow.",
	})
	WebcamDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "webcam", Name: "frames_dropped_total",
		Help: "Webcam frames overwritten before compositing.",
	})
	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glim", Subsystem: "sink", Name: "bytes_written_total",
		Help: "Bytes written to interim containers.",
	})
	SessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "glim", Subsystem: "session", Name: "state",
		Help: "Current session state (0 idle ... 6 failed).",
	})
)
