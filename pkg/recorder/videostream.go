package recorder

import (
	"fmt"
	"io"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
)

// encoder is the interim video container writer. The production one is
// an ffmpeg child eating raw frames on stdin.
type encoder interface {
	Write(frame []byte) error
	// Close lets the container flush, the file must be playable after
	Close() error
}

// newEncoderFunc opens an encoder writing to path.
type newEncoderFunc func(path string) (encoder, error)

const encoderFlushGrace = 10 * time.Second

type videoStream struct {
	proc    *ffmpeg.Proc
	preview io.Reader
}

func newVideoStream(ff *ffmpeg.Ffmpeg, o Options) newEncoderFunc {
	return func(path string) (encoder, error) {
		args := ffmpeg.EncodeArgs(ffmpeg.VideoIn{W: o.W, H: o.H, Fps: o.Fps}, path, o.Encoder, o.Quality, o.Preview)
		var opts []ffmpeg.ProcOption
		if o.Preview != nil {
			opts = append(opts, ffmpeg.WithStdoutData())
		}
		proc, err := ff.Start("encode", args, opts...)
		if err != nil {
			return nil, err
		}
		v := &videoStream{proc: proc}
		if o.Preview != nil {
			v.preview = proc.Stdout()
		}
		return v, nil
	}
}

func (v *videoStream) Write(frame []byte) error {
	if v.proc.Exited() {
		if err := v.proc.Wait(); err != nil {
			return err
		}
		return fmt.Errorf("encoder exited mid-stream")
	}
	_, err := v.proc.Write(frame)
	return err
}

func (v *videoStream) Close() error { return v.proc.Finish(encoderFlushGrace) }
