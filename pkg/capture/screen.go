package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
)

// ScreenGrabber captures one screen rectangle. Implementations may
// block for as long as the OS makes them, the source puts a deadline
// around every call.
type ScreenGrabber interface {
	Grab(region Region) (*image.RGBA, error)
	Close() error
}

const defaultGrabTimeout = 250 * time.Millisecond

type grabResult struct {
	img *image.RGBA
	err error
}

// ScreenSource paces screen grabs for the session loop. A grab that
// exceeds the timeout yields an empty tick instead of stalling the
// pipeline, the late result is picked up by a later tick.
type ScreenSource struct {
	grab    ScreenGrabber
	region  Region
	timeout time.Duration
	// grabs run on one worker goroutine, a pending request means the
	// previous grab is still in flight
	req     chan struct{}
	res     chan grabResult
	pending bool
	seq     uint64
	fails   int
	limit   int
	closed  bool
	log     *logger.Logger
}

// OpenScreen validates the region against the grabber with one probe
// grab and starts the grab worker.
func OpenScreen(grab ScreenGrabber, region Region, timeout time.Duration, failLimit int, log *logger.Logger) (*ScreenSource, error) {
	if region.W <= 0 || region.H <= 0 {
		return nil, fmt.Errorf("empty capture region %v", region)
	}
	if timeout <= 0 {
		timeout = defaultGrabTimeout
	}
	if failLimit <= 0 {
		failLimit = 30
	}
	if _, err := grab.Grab(region); err != nil {
		return nil, fmt.Errorf("capture probe of %v failed: %w", region, err)
	}
	s := &ScreenSource{
		grab:    grab,
		region:  region,
		timeout: timeout,
		req:     make(chan struct{}, 1),
		res:     make(chan grabResult, 1),
		limit:   failLimit,
		log:     log,
	}
	go s.worker()
	return s, nil
}

func (s *ScreenSource) worker() {
	for range s.req {
		img, err := s.grab.Grab(s.region)
		s.res <- grabResult{img: img, err: err}
	}
}

// Capture returns the next frame, (nil, nil) for an empty tick, or
// ErrCaptureUnavailable once hard failures hit the limit.
func (s *ScreenSource) Capture() (*Frame, error) {
	if s.closed {
		return nil, ErrCaptureUnavailable
	}
	if !s.pending {
		s.req <- struct{}{}
		s.pending = true
	}
	t := time.NewTimer(s.timeout)
	defer t.Stop()
	select {
	case r := <-s.res:
		s.pending = false
		if r.err != nil {
			s.fails++
			monitoring.FramesEmpty.Inc()
			if s.fails >= s.limit {
				s.log.Error().Err(r.err).Msgf("screen grab failed %d times in a row", s.fails)
				return nil, ErrCaptureUnavailable
			}
			s.log.Debug().Err(r.err).Msg("empty grab")
			return nil, nil
		}
		s.fails = 0
		s.seq++
		monitoring.FramesCaptured.Inc()
		return &Frame{Image: r.img, Seq: s.seq}, nil
	case <-t.C:
		// grab still in flight, count the tick as empty
		monitoring.FramesEmpty.Inc()
		return nil, nil
	}
}

// Region is the resolved capture rectangle.
func (s *ScreenSource) Region() Region { return s.region }

// Close stops the worker and releases the grabber. A grab in flight is
// waited out so the backend is not closed under it.
func (s *ScreenSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.req)
	if s.pending {
		<-s.res
		s.pending = false
	}
	return s.grab.Close()
}
