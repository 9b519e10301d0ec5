package ffmpeg

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
)

// VideoIn describes the raw frame stream piped into an encode child.
type VideoIn struct {
	W   int
	H   int
	Fps int
}

// PreviewOut tees a second, low-bitrate VP8 stream to stdout for the
// live preview. IVF is the only simple container a stream consumer
// can cut frames out of without a demuxer library.
type PreviewOut struct {
	BitrateKbps int
	Fps         int
	Height      int
}

// EncodeArgs builds the interim video encode command: raw RGBA frames
// on stdin, an H.264 MP4 at the given path, optionally the preview
// stream on stdout.
func EncodeArgs(in VideoIn, out string, encoder string, q config.QualityPreset, preview *PreviewOut) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", in.W, in.H),
		"-r", strconv.Itoa(in.Fps),
		"-i", "pipe:0",
	}

	if q.Scale > 1 {
		args = append(args, "-vf", fmt.Sprintf("scale=iw/%d:-2", q.Scale))
	}
	args = append(args, "-c:v", encoder, "-pix_fmt", "yuv420p")
	if encoder == "libx264" {
		args = append(args, "-preset", q.Speed, "-crf", strconv.Itoa(q.Crf))
	} else {
		args = append(args, "-b:v", fmt.Sprintf("%dk", q.Bitrate))
	}
	args = append(args, "-y", out)

	if preview != nil {
		args = append(args,
			"-map", "0:v",
			"-c:v", "libvpx",
			"-b:v", fmt.Sprintf("%dk", preview.BitrateKbps),
			"-deadline", "realtime", "-cpu-used", "8",
			"-vf", fmt.Sprintf("scale=-2:%d", preview.Height),
			"-r", strconv.Itoa(preview.Fps),
			"-f", "ivf", "pipe:1",
		)
	}
	return args
}

// MuxArgs builds the finalize command joining the interim video and
// audio into the deliverable. AudioDelay shifts the audio stream by
// the difference of the two streams' start offsets. Shortest trims
// a trailing audio tail, it must stay off when the audio track ended
// before the video did or the video gets cut with it.
type Mux struct {
	Video      string
	Audio      string
	Out        string
	AudioRate  int
	AudioCh    int
	AudioDelay time.Duration
	Shortest   bool
	Quality    config.QualityPreset
}

func MuxArgs(m Mux) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", m.Video}
	if m.Audio != "" {
		if m.AudioDelay != 0 {
			args = append(args, "-itsoffset", fmt.Sprintf("%.3f", m.AudioDelay.Seconds()))
		}
		args = append(args, "-i", m.Audio,
			"-c:v", "libx264", "-preset", m.Quality.Speed, "-crf", strconv.Itoa(m.Quality.Crf),
			"-c:a", "aac", "-b:a", "128k",
			"-ar", strconv.Itoa(m.AudioRate), "-ac", strconv.Itoa(m.AudioCh),
			"-vsync", "cfr", "-async", "1",
		)
	} else {
		args = append(args, "-c:v", "copy")
	}
	args = append(args, "-movflags", "+faststart")
	if m.Shortest && m.Audio != "" {
		args = append(args, "-shortest")
	}
	args = append(args, m.Out)
	return args
}

// ConcatArgs merges recorded segments without a re-encode.
func ConcatArgs(listFile, out string) []string {
	return []string{"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listFile, "-c", "copy", out}
}

// grabber returns the platform device demuxer.
func grabber() string {
	switch runtime.GOOS {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	default:
		return "pulse"
	}
}

// AudioCaptureArgs builds a device capture command streaming raw
// s16le PCM to stdout.
func AudioCaptureArgs(device string, rate, ch int) []string {
	g := grabber()
	in := device
	switch g {
	case "dshow":
		in = "audio=" + device
	case "pulse":
		if in == "" {
			in = "default"
		}
	case "avfoundation":
		if in == "" {
			in = "0"
		}
		in = "none:" + in
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", g, "-i", in,
		"-ar", strconv.Itoa(rate), "-ac", strconv.Itoa(ch),
		"-f", "s16le", "pipe:1",
	}
}

// WebcamCaptureArgs builds a camera capture command streaming raw
// RGBA frames to stdout.
func WebcamCaptureArgs(device string, w, h, fps int) []string {
	var args []string
	switch runtime.GOOS {
	case "windows":
		args = []string{"-f", "dshow", "-framerate", strconv.Itoa(fps), "-i", "video=" + device}
	case "darwin":
		args = []string{"-f", "avfoundation", "-framerate", strconv.Itoa(fps), "-i", device + ":none"}
	default:
		if device == "" {
			device = "/dev/video0"
		}
		args = []string{"-f", "v4l2", "-framerate", strconv.Itoa(fps), "-i", device}
	}
	return append(append([]string{"-hide_banner", "-loglevel", "error"}, args...),
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1",
	)
}

// ListDevicesArgs builds the device enumeration command. ffmpeg prints
// the listing to stderr and exits non-zero, the caller parses the
// output regardless.
func ListDevicesArgs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy"}
	case "darwin":
		return []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}
	default:
		return []string{"-hide_banner", "-sources", "pulse"}
	}
}
