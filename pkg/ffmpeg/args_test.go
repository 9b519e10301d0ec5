package ffmpeg

import (
	"strings"
	"testing"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
)

func argString(args []string) string { return strings.Join(args, " ") }

func TestEncodeArgsSoftware(t *testing.T) {
	q := config.QualityPreset{Name: "high", Scale: 1, Speed: "medium", Crf: 23, Bitrate: 12000}
	got := argString(EncodeArgs(VideoIn{W: 1920, H: 1080, Fps: 30}, "out.mp4", "libx264", q, nil))

	for _, want := range []string{
		"-f rawvideo -pix_fmt rgba",
		"-s 1920x1080",
		"-r 30",
		"-i pipe:0",
		"-c:v libx264 -pix_fmt yuv420p",
		"-preset medium -crf 23",
		"-y out.mp4",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "-b:v") {
		t.Errorf("bitrate in a crf encode: %q", got)
	}
	if strings.Contains(got, "scale=") {
		t.Errorf("scale filter at scale 1: %q", got)
	}
}

func TestEncodeArgsHardware(t *testing.T) {
	q := config.QualityPreset{Name: "low", Scale: 2, Speed: "ultrafast", Crf: 28, Bitrate: 4000}
	got := argString(EncodeArgs(VideoIn{W: 800, H: 600, Fps: 15}, "out.mp4", "h264_nvenc", q, nil))

	if !strings.Contains(got, "-vf scale=iw/2:-2") {
		t.Errorf("no downscale filter: %q", got)
	}
	if !strings.Contains(got, "-c:v h264_nvenc") || !strings.Contains(got, "-b:v 4000k") {
		t.Errorf("hardware encoder args: %q", got)
	}
	if strings.Contains(got, "-crf") {
		t.Errorf("crf with a hardware encoder: %q", got)
	}
}

func TestEncodeArgsPreviewTee(t *testing.T) {
	q := config.QualityPreset{Name: "high", Speed: "medium", Crf: 23}
	got := argString(EncodeArgs(VideoIn{W: 1280, H: 720, Fps: 30}, "out.mp4", "libx264", q,
		&PreviewOut{BitrateKbps: 1000, Fps: 15, Height: 360}))

	for _, want := range []string{
		"-map 0:v",
		"-c:v libvpx -b:v 1000k",
		"-vf scale=-2:360",
		"-r 15",
		"-f ivf pipe:1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Index(got, "out.mp4") > strings.Index(got, "ivf") {
		t.Errorf("preview tee before the file output: %q", got)
	}
}

func TestMuxArgsAudio(t *testing.T) {
	got := argString(MuxArgs(Mux{
		Video: "v.mp4", Audio: "a.wav", Out: "final.mp4",
		AudioRate: 44100, AudioCh: 2,
		AudioDelay: 1250 * time.Millisecond,
		Shortest:   true,
		Quality:    config.QualityPreset{Speed: "medium", Crf: 23},
	}))

	for _, want := range []string{
		"-i v.mp4",
		"-itsoffset 1.250 -i a.wav",
		"-c:a aac -b:a 128k",
		"-ar 44100 -ac 2",
		"-movflags +faststart",
		"-shortest final.mp4",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestMuxArgsNoDelayNoShortest(t *testing.T) {
	got := argString(MuxArgs(Mux{Video: "v.mp4", Audio: "a.wav", Out: "f.mp4", AudioRate: 48000, AudioCh: 1}))
	if strings.Contains(got, "-itsoffset") {
		t.Errorf("itsoffset with zero delay: %q", got)
	}
	if strings.Contains(got, "-shortest") {
		t.Errorf("shortest against a short audio track: %q", got)
	}
}

func TestMuxArgsVideoOnly(t *testing.T) {
	got := argString(MuxArgs(Mux{Video: "v.mp4", Out: "f.mp4", Shortest: true}))
	if !strings.Contains(got, "-c:v copy") {
		t.Errorf("no stream copy without audio: %q", got)
	}
	for _, absent := range []string{"-c:a", "-shortest", "-itsoffset"} {
		if strings.Contains(got, absent) {
			t.Errorf("%v in a video-only mux: %q", absent, got)
		}
	}
}

func TestConcatArgs(t *testing.T) {
	got := argString(ConcatArgs("list.txt", "merged.mp4"))
	if !strings.Contains(got, "-f concat -safe 0 -i list.txt -c copy merged.mp4") {
		t.Errorf("concat args: %q", got)
	}
}

func TestAudioCaptureArgsOutput(t *testing.T) {
	got := argString(AudioCaptureArgs("dev1", 44100, 2))
	for _, want := range []string{"-ar 44100", "-ac 2", "-f s16le pipe:1"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestWebcamCaptureArgsOutput(t *testing.T) {
	got := argString(WebcamCaptureArgs("cam", 640, 480, 10))
	for _, want := range []string{"-framerate 10", "-vf scale=640:480", "-f rawvideo -pix_fmt rgba pipe:1"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}
