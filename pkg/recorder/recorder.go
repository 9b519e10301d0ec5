// Package recorder owns the interim artifacts of a session and folds
// them into the deliverable at finalize. Frames go to an external
// encoder child, audio to a WAV alongside, the mux joins both. The
// output path is flock-owned for the whole session.
package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
	oss "github.com/glimlang/glimlang-recorder-dev/pkg/os"
	"github.com/hashicorp/go-multierror"
)

// muxRunner runs a short ffmpeg invocation to completion.
type muxRunner interface {
	Run(ctx context.Context, args []string) error
}

const writeRetryBackoff = 50 * time.Millisecond

// shorter audio than this gap means the track ended early and must
// not trim the video
const audioTailTolerance = 500 * time.Millisecond

// Recording is one open sink. Writes append to the interim files,
// Finalize muxes them into the deliverable and cleans up.
type Recording struct {
	mu sync.Mutex

	out  string
	base string
	opts Options

	enc    encoder
	newEnc newEncoderFunc
	parts  []string
	audio  *wavStream

	mux  muxRunner
	lock *oss.Flock

	frames     uint64
	firstVideo time.Duration
	firstAudio time.Duration
	sawVideo   bool
	sawAudio   bool
	closed     bool

	log *logger.Logger
}

// Result describes a finalized deliverable.
type Result struct {
	Path string
	// AudioPath is set when the WAV was kept next to the deliverable
	AudioPath string
	Frames    uint64
	Duration  time.Duration
}

// New opens the sink for the given deliverable path: locks it, starts
// the interim encoder, opens the interim WAV.
func New(out string, o Options, ff *ffmpeg.Ffmpeg, log *logger.Logger) (*Recording, error) {
	return open(out, o, newVideoStream(ff, o), ff, log)
}

func open(out string, o Options, newEnc newEncoderFunc, mux muxRunner, log *logger.Logger) (*Recording, error) {
	r := &Recording{
		out:    out,
		base:   strings.TrimSuffix(out, filepath.Ext(out)),
		opts:   o,
		newEnc: newEnc,
		mux:    mux,
		log:    log,
	}

	lock, err := oss.NewFileLock(out + ".lock")
	if err != nil {
		return nil, err
	}
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("output %v is owned by another recording", out)
	}
	r.lock = lock

	if r.enc, err = newEnc(r.nextPartPath()); err != nil {
		r.unlock()
		return nil, fmt.Errorf("interim encoder: %w", err)
	}
	if o.Audio {
		if r.audio, err = newWavStream(r.interimAudioPath(), o.Rate, o.Channels); err != nil {
			_ = r.enc.Close()
			r.unlock()
			return nil, fmt.Errorf("interim audio: %w", err)
		}
	}
	log.Info().Msgf("recording into %v", out)
	return r, nil
}

func (r *Recording) interimVideoPath() string { return r.base + "_tmp_video.mp4" }
func (r *Recording) interimAudioPath() string { return r.base + "_tmp_audio.wav" }
func (r *Recording) savedAudioPath() string   { return r.base + "_audio.wav" }

// nextPartPath names the next interim video file. Without segments
// there is exactly one and it is the interim video itself.
func (r *Recording) nextPartPath() string {
	var path string
	if r.opts.Segmented {
		path = fmt.Sprintf("%s_tmp_video_%03d.mp4", r.base, len(r.parts)+1)
	} else {
		path = r.interimVideoPath()
	}
	r.parts = append(r.parts, path)
	return path
}

// WriteFrame appends one raw frame to the interim video. A transient
// write failure is retried once, a persistent one is fatal.
func (r *Recording) WriteFrame(f *capture.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if f == nil || f.Image == nil {
		return nil
	}
	if len(f.Image.Pix) != r.opts.W*r.opts.H*4 {
		return &FatalIOError{Op: "video write", Err: fmt.Errorf("frame size %d does not fit %dx%d", len(f.Image.Pix), r.opts.W, r.opts.H)}
	}
	if !r.sawVideo {
		r.sawVideo, r.firstVideo = true, f.Ts
	}
	if err := writeRetry(func() error { return r.enc.Write(f.Image.Pix) }); err != nil {
		return &FatalIOError{Op: "video write", Err: err}
	}
	r.frames++
	monitoring.FramesEncoded.Inc()
	monitoring.BytesWritten.Add(float64(len(f.Image.Pix)))
	return nil
}

// WriteAudio appends one PCM block to the interim WAV.
func (r *Recording) WriteAudio(b *capture.AudioBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.audio == nil || b == nil || len(b.Samples) == 0 {
		return nil
	}
	if !r.sawAudio {
		r.sawAudio, r.firstAudio = true, b.Ts
	}
	if err := writeRetry(func() error { return r.audio.Write(b.Samples) }); err != nil {
		return &FatalIOError{Op: "audio write", Err: err}
	}
	monitoring.BytesWritten.Add(float64(len(b.Samples) * 2))
	return nil
}

// Rotate closes the current interim video part and opens the next
// one, audio runs through uninterrupted.
func (r *Recording) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if !r.opts.Segmented {
		return nil
	}
	if err := r.enc.Close(); err != nil {
		return &FatalIOError{Op: "segment close", Err: err}
	}
	enc, err := r.newEnc(r.nextPartPath())
	if err != nil {
		return &FatalIOError{Op: "segment open", Err: err}
	}
	r.enc = enc
	r.log.Debug().Msgf("rotated to segment %d", len(r.parts))
	return nil
}

// Frames is the number of frames written so far.
func (r *Recording) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Preview is the teed low-rate stream of the interim encoder, nil
// when the preview is off.
func (r *Recording) Preview() io.Reader {
	if p, ok := r.enc.(interface{ Preview() io.Reader }); ok {
		return p.Preview()
	}
	return nil
}

// Finalize closes the interim files and muxes them into the
// deliverable. Interim files are deleted only on success, a failure
// keeps them and says where they are.
func (r *Recording) Finalize(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Result{}, ErrClosed
	}
	r.closed = true
	defer r.unlock()

	var closeErrs *multierror.Error
	if err := r.enc.Close(); err != nil {
		closeErrs = multierror.Append(closeErrs, err)
	}
	var audioDur time.Duration
	if r.audio != nil {
		audioDur = r.audio.Duration()
		if err := r.audio.Close(); err != nil {
			closeErrs = multierror.Append(closeErrs, err)
		}
	}
	if err := closeErrs.ErrorOrNil(); err != nil {
		return Result{}, r.failed(err)
	}

	video, err := r.combineParts(ctx)
	if err != nil {
		return Result{}, r.failed(err)
	}

	videoDur := r.videoDuration()
	m := ffmpeg.Mux{
		Video:    video,
		Out:      r.out,
		Quality:  r.opts.Quality,
		Shortest: audioDur+audioTailTolerance >= videoDur,
	}
	if r.audio != nil && r.sawAudio {
		m.Audio = r.interimAudioPath()
		m.AudioRate = r.opts.Rate
		m.AudioCh = r.opts.Channels
		m.AudioDelay = r.firstAudio - r.firstVideo
	}
	muxCtx, cancel := context.WithTimeout(ctx, r.muxTimeout())
	defer cancel()
	if err := r.mux.Run(muxCtx, ffmpeg.MuxArgs(m)); err != nil {
		return Result{}, r.failed(err)
	}
	if st, err := os.Stat(r.out); err != nil || st.Size() == 0 {
		return Result{}, r.failed(fmt.Errorf("mux produced no output at %v", r.out))
	}

	res := Result{Path: r.out, Frames: r.frames, Duration: videoDur}
	for _, p := range r.parts {
		_ = os.Remove(p)
	}
	_ = os.Remove(r.interimVideoPath())
	_ = os.Remove(r.concatListPath())
	if r.audio != nil {
		if r.opts.SaveAudio {
			if err := os.Rename(r.interimAudioPath(), r.savedAudioPath()); err == nil {
				res.AudioPath = r.savedAudioPath()
			}
		} else {
			_ = os.Remove(r.interimAudioPath())
		}
	}
	r.log.Info().Msgf("recording finalized: %v (%d frames, %v)", r.out, r.frames, videoDur)
	return res, nil
}

// failed names the preserved interim artifacts in the error, nothing
// is deleted on this path.
func (r *Recording) failed(cause error) error {
	e := &FinalizeFailedError{Err: cause, VideoPath: r.interimVideoPath()}
	if _, err := os.Stat(r.interimVideoPath()); err != nil && len(r.parts) > 0 {
		e.VideoPath = r.parts[0]
	}
	if r.audio != nil {
		e.AudioPath = r.interimAudioPath()
		// an extra copy under a friendlier name, the audio alone is
		// still worth keeping
		if err := copyFile(r.interimAudioPath(), r.savedAudioPath()); err == nil {
			e.AudioPath = r.savedAudioPath()
		}
	}
	r.log.Error().Err(cause).Msgf("finalize failed, interim files kept: %v %v", e.VideoPath, e.AudioPath)
	return e
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// combineParts concatenates rotated segments into the single interim
// video, a lone part is just renamed.
func (r *Recording) combineParts(ctx context.Context) (string, error) {
	if !r.opts.Segmented || len(r.parts) == 0 {
		return r.interimVideoPath(), nil
	}
	if len(r.parts) == 1 {
		if err := os.Rename(r.parts[0], r.interimVideoPath()); err != nil {
			return "", err
		}
		return r.interimVideoPath(), nil
	}
	var list strings.Builder
	for _, p := range r.parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	if err := os.WriteFile(r.concatListPath(), []byte(list.String()), 0644); err != nil {
		return "", err
	}
	concatCtx, cancel := context.WithTimeout(ctx, r.muxTimeout())
	defer cancel()
	if err := r.mux.Run(concatCtx, ffmpeg.ConcatArgs(r.concatListPath(), r.interimVideoPath())); err != nil {
		return "", fmt.Errorf("segment concat: %w", err)
	}
	return r.interimVideoPath(), nil
}

func (r *Recording) concatListPath() string { return r.base + "_concat.txt" }

func (r *Recording) videoDuration() time.Duration {
	if r.opts.Fps <= 0 {
		return 0
	}
	return time.Duration(r.frames) * time.Second / time.Duration(r.opts.Fps)
}

func (r *Recording) muxTimeout() time.Duration {
	if r.opts.MuxTimeout > 0 {
		return r.opts.MuxTimeout
	}
	return 300 * time.Second
}

func (r *Recording) unlock() {
	if r.lock == nil {
		return
	}
	path := r.lock.Path()
	if err := r.lock.Unlock(); err != nil {
		r.log.Warn().Err(err).Msg("output unlock failed")
	}
	_ = os.Remove(path)
	r.lock = nil
}

func writeRetry(w func() error) error {
	err := w()
	if err == nil {
		return nil
	}
	time.Sleep(writeRetryBackoff)
	return w()
}
