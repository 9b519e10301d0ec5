package capture

import (
	"fmt"
	"image"
	"io"
	"sync/atomic"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

// WebcamSource pumps low-rate camera frames from an ffmpeg child into
// a latest-wins mailbox, the compositor takes whatever is freshest. A
// dying camera freezes the overlay on the last delivered frame instead
// of failing the session.
type WebcamSource struct {
	proc   *ffmpeg.Proc
	box    mailbox
	w, h   int
	closed uint32
	log    *logger.Logger
}

// OpenWebcam starts the camera child at the configured size and rate.
func OpenWebcam(ff *ffmpeg.Ffmpeg, conf config.Webcam, log *logger.Logger) (*WebcamSource, error) {
	w, h, fps := conf.Width, conf.Height, conf.Fps
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}
	if fps <= 0 {
		fps = 10
	}
	p, err := ff.Start("webcam", ffmpeg.WebcamCaptureArgs(conf.Device, w, h, fps), ffmpeg.WithStdoutData())
	if err != nil {
		return nil, fmt.Errorf("webcam %v: %w", conf.Device, err)
	}
	s := &WebcamSource{proc: p, w: w, h: h, log: log}
	go s.pump()
	return s, nil
}

func (s *WebcamSource) pump() {
	size := s.w * s.h * 4
	out := s.proc.Stdout()
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(out, buf); err != nil {
			if atomic.LoadUint32(&s.closed) == 0 {
				s.log.Warn().Err(err).Msg("webcam stream ended")
			}
			return
		}
		s.box.put(&image.RGBA{Pix: buf, Stride: s.w * 4, Rect: image.Rect(0, 0, s.w, s.h)})
	}
}

// Latest takes the freshest undelivered frame, ok is false when
// nothing new arrived since the last take.
func (s *WebcamSource) Latest() (*image.RGBA, bool) { return s.box.take() }

// Dropped counts frames overwritten before anyone took them.
func (s *WebcamSource) Dropped() uint64 { return s.box.dropped() }

func (s *WebcamSource) Close() error {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return nil
	}
	return s.proc.Stop(deviceStopGrace)
}
