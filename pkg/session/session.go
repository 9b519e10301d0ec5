// Package session owns the recording lifecycle: one controller, one
// active session at a time, a forward-only state machine and the
// journal of everything notable that happened on the way.
package session

import (
	"context"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"

	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
	"github.com/glimlang/glimlang-recorder-dev/pkg/overlay"
	"github.com/glimlang/glimlang-recorder-dev/pkg/recorder"
)

// Narrow views of the pipeline components. The controller wires the
// real capture and recorder types in, tests substitute fakes without
// hardware or child processes.
type frameSource interface {
	Capture() (*capture.Frame, error)
	Close() error
}

type audioSource interface {
	Blocks() <-chan *capture.AudioBlock
	Lost() <-chan capture.DeviceLost
	Close() error
}

type pipSource interface {
	Latest() (*image.RGBA, bool)
	Close() error
}

type sink interface {
	WriteFrame(*capture.Frame) error
	WriteAudio(*capture.AudioBlock) error
	Rotate() error
	Finalize(ctx context.Context) (recorder.Result, error)
}

// Session is one recording attempt: the immutable settings snapshot,
// the wired components and everything measured while they run.
type Session struct {
	ID string

	snap      config.Snapshot
	startedAt time.Time
	out       string

	screen   frameSource
	audio    audioSource
	webcam   pipSource
	sink     sink
	comp     *overlay.Compositor
	cursorAt func() (capture.CursorState, bool)
	preview  io.Reader

	state    int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	frames   uint64
	gaps     uint64
	audioDur int64

	// last prepared webcam picture, refreshed every few ticks
	pip   *image.RGBA
	tickN uint64

	mu     sync.Mutex
	endAt  time.Time
	events []Event
	cause  error
	err    error
	result recorder.Result

	log *logger.Logger
}

func newSession(snap config.Snapshot, log *logger.Logger) *Session {
	id := uuid.Must(uuid.NewV4()).String()
	return &Session{
		ID:   id,
		snap: snap,
		stop: make(chan struct{}),
		done: make(chan struct{}),
		log:  log.Extend(log.With().Str("session", id[:8])),
	}
}

func (s *Session) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *Session) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
	monitoring.SessionState.Set(float64(st))
	s.log.Debug().Msgf("state %v", st)
}

// Stop asks the session to wind down at the next safe point. Safe to
// call any number of times from any goroutine.
func (s *Session) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// Done closes once the session reached a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is over and returns its outcome.
func (s *Session) Wait() (recorder.Result, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Config is the immutable snapshot the session runs on.
func (s *Session) Config() config.Snapshot { return s.snap }

// Output is the deliverable path the session writes to.
func (s *Session) Output() string { return s.out }

// Preview is the teed low-rate stream, nil unless enabled.
func (s *Session) Preview() io.Reader { return s.preview }

func (s *Session) Frames() uint64 { return atomic.LoadUint64(&s.frames) }

// Gaps counts ticks that produced no frame.
func (s *Session) Gaps() uint64 { return atomic.LoadUint64(&s.gaps) }

// AudioDuration is the total PCM time written to the sink.
func (s *Session) AudioDuration() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.audioDur))
}

func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	end := s.endAt
	s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	if !end.IsZero() {
		return end.Sub(s.startedAt)
	}
	return time.Since(s.startedAt)
}

// Events is a copy of the incident journal.
func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Result is only meaningful once the session is done.
func (s *Session) Result() recorder.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) journal(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

// fail records the first fatal cause and asks the loop to stop. The
// loop still runs the full Stopping → Finalizing path afterwards.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.cause == nil {
		s.cause = err
	}
	s.mu.Unlock()
	s.journal(Event{Offset: s.sinceStart(), Kind: EventFatal, Err: err})
	s.log.Error().Err(err).Msg("fatal, stopping")
	s.Stop()
}

func (s *Session) sinceStart() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// tick grabs one frame, decorates it and hands it to the sink. A nil
// frame is a counted gap, an error is fatal.
func (s *Session) tick() error {
	f, err := s.screen.Capture()
	if err != nil {
		return err
	}
	if f == nil {
		atomic.AddUint64(&s.gaps, 1)
		return nil
	}
	f.Ts = time.Since(s.startedAt)
	s.refreshPip()
	var cur *capture.CursorState
	if s.cursorAt != nil && s.snap.Overlay.Cursor.Enabled {
		if p, ok := s.cursorAt(); ok {
			cur = &p
		}
	}
	s.comp.Apply(f, cur, s.pip)
	if err := s.sink.WriteFrame(f); err != nil {
		return err
	}
	atomic.AddUint64(&s.frames, 1)
	return nil
}

// refreshPip polls the webcam every few ticks and keeps the prepared
// picture between polls. A camera that never delivered leaves it nil.
func (s *Session) refreshPip() {
	if s.webcam == nil {
		return
	}
	every := s.snap.Overlay.Webcam.Refresh
	if every < 1 {
		every = 1
	}
	if s.tickN%uint64(every) == 0 {
		if img, ok := s.webcam.Latest(); ok {
			s.pip = s.comp.PreparePip(img)
		}
	}
	s.tickN++
}

// drainAudio moves PCM from the capture queue into the sink on its
// own goroutine so audio never waits for video pacing. Device loss is
// journaled, not fatal.
func (s *Session) drainAudio() {
	defer s.wg.Done()
	for {
		select {
		case b, ok := <-s.audio.Blocks():
			if !ok {
				return
			}
			if err := s.sink.WriteAudio(b); err != nil {
				s.fail(err)
				return
			}
			atomic.AddInt64(&s.audioDur, int64(b.Duration()))
		case l := <-s.audio.Lost():
			s.deviceLost(l)
		}
	}
}

func (s *Session) deviceLost(l capture.DeviceLost) {
	err := &DeviceLostError{Source: l.Source, Offset: l.Offset, Err: l.Err}
	s.journal(Event{Offset: l.Offset, Kind: EventDeviceLost, Err: err})
	s.log.Warn().Err(l.Err).Msgf("%v, continuing without it", err)
}

// closeSources shuts the inputs in reverse open order, the sink stays
// open for the finalize step.
func (s *Session) closeSources() {
	if s.webcam != nil {
		_ = s.webcam.Close()
	}
	if s.audio != nil {
		if err := s.audio.Close(); err != nil {
			s.log.Warn().Err(err).Msg("audio close")
		}
	}
	if s.screen != nil {
		if err := s.screen.Close(); err != nil {
			s.log.Warn().Err(err).Msg("screen close")
		}
	}
}
