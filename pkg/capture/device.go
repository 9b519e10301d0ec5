package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/ffmpeg"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

const deviceStopGrace = 2 * time.Second

// ffmpegAudio captures one audio device through an ffmpeg child
// streaming raw s16le to its stdout.
type ffmpegAudio struct {
	id       SourceID
	device   string
	rate     int
	channels int
	ff       *ffmpeg.Ffmpeg
	proc     *ffmpeg.Proc
	out      io.Reader
	log      *logger.Logger
}

// NewAudioDevice wraps a platform audio device id. An empty id maps to
// the platform default input.
func NewAudioDevice(ff *ffmpeg.Ffmpeg, id SourceID, device string, rate, channels int, log *logger.Logger) AudioDevice {
	return &ffmpegAudio{id: id, device: device, rate: rate, channels: channels, ff: ff, log: log}
}

func (a *ffmpegAudio) ID() SourceID { return a.id }

func (a *ffmpegAudio) Open() error {
	p, err := a.ff.Start("audio-"+string(a.id),
		ffmpeg.AudioCaptureArgs(a.device, a.rate, a.channels), ffmpeg.WithStdoutData())
	if err != nil {
		return err
	}
	a.proc = p
	a.out = p.Stdout()
	return nil
}

func (a *ffmpegAudio) Read(p []byte) (int, error) {
	if a.out == nil {
		return 0, fmt.Errorf("audio device %v is not open", a.id)
	}
	return a.out.Read(p)
}

func (a *ffmpegAudio) Close() error {
	if a.proc == nil {
		return nil
	}
	err := a.proc.Stop(deviceStopGrace)
	a.proc = nil
	return err
}
