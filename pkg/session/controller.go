package session

import (
	"context"
	"fmt"
	"io"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
	"github.com/glimlang/glimlang-recorder-dev/pkg/overlay"
	oss "github.com/glimlang/glimlang-recorder-dev/pkg/os"
	"github.com/glimlang/glimlang-recorder-dev/pkg/recorder"
)

// Controller owns recording sessions, at most one active at a time.
// Start copies the current settings into the session so later config
// edits never touch a recording in flight.
type Controller struct {
	ff  *ffmpeg.Ffmpeg
	log *logger.Logger

	mu      sync.Mutex
	conf    config.Recorder
	current *Session

	cursorAt func() (capture.CursorState, bool)
	preview  *ffmpeg.PreviewOut

	// pipeline factories, swapped in tests
	openScreen func(snap config.Snapshot, log *logger.Logger) (frameSource, capture.Region, error)
	openAudio  func(snap config.Snapshot, log *logger.Logger) (audioSource, error)
	openWebcam func(snap config.Snapshot, log *logger.Logger) (pipSource, error)
	openSink   func(out string, o recorder.Options, log *logger.Logger) (sink, error)
}

func NewController(conf config.Recorder, ff *ffmpeg.Ffmpeg, log *logger.Logger) *Controller {
	c := &Controller{conf: conf, ff: ff, log: log}
	c.openScreen = c.screenSource
	c.openAudio = c.audioSource
	c.openWebcam = c.webcamSource
	c.openSink = c.recorderSink
	return c
}

// TrackCursor wires the cursor position reader the overlay draws from.
func (c *Controller) TrackCursor(f func() (capture.CursorState, bool)) { c.cursorAt = f }

// EnablePreview turns on the low-rate preview tee for new sessions.
func (c *Controller) EnablePreview(po ffmpeg.PreviewOut) { c.preview = &po }

// SetConfig swaps the settings used by future sessions. Refused while
// a session is active, its snapshot stays untouched either way.
func (c *Controller) SetConfig(conf config.Recorder) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.State().Terminal() {
		return false
	}
	c.conf = conf
	return true
}

// Session returns the active or most recent session, nil before any.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stop winds down the active session if there is one.
func (c *Controller) Stop() {
	if s := c.Session(); s != nil {
		s.Stop()
	}
}

// Start validates the settings, opens every enabled component and
// begins the paced loop. A failure on the way up closes whatever was
// opened and leaves the controller idle, nothing half started.
func (c *Controller) Start() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.State().Terminal() {
		return nil, ErrAlreadyRecording
	}

	s := newSession(c.conf, c.log)
	s.cursorAt = c.cursorAt
	s.setState(Starting)
	if err := c.openPipeline(s); err != nil {
		s.setState(Idle)
		return nil, err
	}

	// the reference clock all frame and audio offsets are measured from
	s.startedAt = time.Now()
	s.setState(Recording)
	c.current = s
	s.log.Info().Msgf("recording at %v fps to %v", s.snap.Video.Fps, s.out)
	go c.run(s)
	return s, nil
}

func (c *Controller) openPipeline(s *Session) error {
	snap := s.snap
	if fps := snap.Video.Fps; fps < 1 || fps > 240 {
		return &ValidationError{Field: "video", Err: fmt.Errorf("fps %d out of range", fps)}
	}
	if q := snap.Video.Quality; q != "" && !config.KnownQuality(q) {
		return &ValidationError{Field: "video", Err: fmt.Errorf("unknown quality %q", q)}
	}
	dir := snap.Output.Dir
	if err := oss.CheckCreateDir(dir); err != nil {
		return &ValidationError{Field: "output", Err: err}
	}
	if !oss.IsDirWritable(dir) {
		return &ValidationError{Field: "output", Err: fmt.Errorf("dir %v is not writable", dir)}
	}
	if min := snap.Output.MinFreeMb; min > 0 {
		if free, err := oss.FreeSpace(dir); err == nil && free < min<<20 {
			return &ValidationError{Field: "output",
				Err: fmt.Errorf("%v MB free on %v, need at least %v", free>>20, dir, min)}
		}
	}

	screen, region, err := c.openScreen(snap, s.log)
	if err != nil {
		return &ValidationError{Field: "video", Err: err}
	}
	s.screen = screen

	if snap.Audio.Enabled {
		audio, err := c.openAudio(snap, s.log)
		if err != nil {
			s.closeSources()
			return &ValidationError{Field: "audio", Err: err}
		}
		s.audio = audio
	}
	if snap.Overlay.Webcam.Enabled {
		cam, err := c.openWebcam(snap, s.log)
		if err != nil {
			s.closeSources()
			return &ValidationError{Field: "webcam", Err: err}
		}
		s.webcam = cam
	}

	out := filepath.Join(dir, recorder.ParseName(snap.Output.Name, snap.Tag, username()))
	o := recorder.Options{
		W:          region.W,
		H:          region.H,
		Fps:        snap.Video.Fps,
		Encoder:    c.encoderName(snap),
		Quality:    snap.Video.Preset(),
		Audio:      snap.Audio.Enabled,
		Rate:       snap.Audio.Rate,
		Channels:   snap.Audio.Channels,
		SaveAudio:  snap.Audio.SaveSeparately,
		Segmented:  snap.Video.Segment.Enabled,
		MuxTimeout: snap.Ffmpeg.MuxTimeout,
		Preview:    c.preview,
	}
	sk, err := c.openSink(out, o, s.log)
	if err != nil {
		s.closeSources()
		return &ValidationError{Field: "output", Err: err}
	}
	s.sink = sk
	s.out = out
	s.comp = overlay.New(snap.Overlay, region)
	if c.preview != nil {
		if p, ok := sk.(interface{ Preview() io.Reader }); ok {
			s.preview = p.Preview()
		}
	}
	return nil
}

// run is the paced video loop. It owns the session until a terminal
// state, audio drains concurrently on its own goroutine.
func (c *Controller) run(s *Session) {
	defer close(s.done)

	ticker := time.NewTicker(time.Second / time.Duration(s.snap.Video.Fps))
	defer ticker.Stop()

	if s.audio != nil {
		s.wg.Add(1)
		go s.drainAudio()
	}

	var deadline <-chan time.Time
	if s.snap.MaxDuration > 0 {
		t := time.NewTimer(s.snap.MaxDuration)
		defer t.Stop()
		deadline = t.C
	}
	var rotate <-chan time.Time
	if s.snap.Video.Segment.Enabled {
		rt := time.NewTicker(s.snap.Video.Segment.MaxDuration)
		defer rt.Stop()
		rotate = rt.C
	}

	for {
		select {
		case <-s.stop:
			c.finish(s)
			return
		case <-deadline:
			s.log.Info().Msgf("duration cap %v reached", s.snap.MaxDuration)
			c.finish(s)
			return
		case <-rotate:
			if err := s.sink.Rotate(); err != nil {
				s.fail(err)
				c.finish(s)
				return
			}
		case <-ticker.C:
			skipTicks(ticker.C)
			if err := s.tick(); err != nil {
				s.fail(err)
				c.finish(s)
				return
			}
		}
	}
}

// skipTicks drops the backlog a slow tick left behind so the loop
// catches up by skipping, never by working off a stale schedule.
func skipTicks(c <-chan time.Time) {
	for {
		select {
		case <-c:
			monitoring.TicksSkipped.Inc()
		default:
			return
		}
	}
}

// finish drives Stopping → Finalizing → terminal. Sources close
// first, queued audio drains to the sink, then the one long blocking
// finalize runs. A terminal state is always reached.
func (c *Controller) finish(s *Session) {
	s.setState(Stopping)
	s.closeSources()
	s.wg.Wait()
	if s.audio != nil {
		// loss events can still sit in the buffer after close
	drain:
		for {
			select {
			case l := <-s.audio.Lost():
				s.deviceLost(l)
			default:
				break drain
			}
		}
	}

	s.setState(Finalizing)
	res, ferr := s.sink.Finalize(context.Background())

	s.mu.Lock()
	s.endAt = time.Now()
	s.result = res
	err := s.cause
	if ferr != nil {
		err = multierror.Append(err, ferr).ErrorOrNil()
	}
	s.err = err
	s.mu.Unlock()

	if err != nil {
		s.setState(Failed)
		s.log.Error().Err(err).Msg("session failed")
		return
	}
	s.setState(Completed)
	s.log.Info().Msgf("session completed: %v (%d frames, %v)", res.Path, res.Frames, res.Duration)
}

func (c *Controller) screenSource(snap config.Snapshot, log *logger.Logger) (frameSource, capture.Region, error) {
	region, err := capture.ResolveRegion(snap.Video)
	if err != nil {
		return nil, capture.Region{}, err
	}
	src, err := capture.OpenScreen(capture.NewDisplayGrabber(), region,
		snap.Video.CaptureTimeout, snap.Video.FailLimit, log)
	if err != nil {
		return nil, capture.Region{}, err
	}
	return src, region, nil
}

func (c *Controller) audioSource(snap config.Snapshot, log *logger.Logger) (audioSource, error) {
	ids := snap.Audio.Devices()
	srcs := []capture.SourceID{capture.SourceMic, capture.SourceLoopback}
	devs := make([]capture.AudioDevice, 0, len(ids))
	for i, id := range ids {
		devs = append(devs, capture.NewAudioDevice(c.ff, srcs[i], id,
			snap.Audio.Rate, snap.Audio.Channels, log))
	}
	return capture.OpenAudio(devs, snap.Audio.Rate, snap.Audio.Channels, snap.Audio.Queue, log)
}

func (c *Controller) webcamSource(snap config.Snapshot, log *logger.Logger) (pipSource, error) {
	return capture.OpenWebcam(c.ff, snap.Overlay.Webcam, log)
}

func (c *Controller) recorderSink(out string, o recorder.Options, log *logger.Logger) (sink, error) {
	return recorder.New(out, o, c.ff, log)
}

func (c *Controller) encoderName(snap config.Snapshot) string {
	if c.ff == nil {
		return "libx264"
	}
	return c.ff.H264Encoder(snap.Video.HwAccel)
}

// username feeds the %user% output name token.
func username() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "user"
	}
	name := u.Username
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	return name
}
