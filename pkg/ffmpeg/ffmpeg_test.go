package ffmpeg

import (
	"testing"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

func TestH264EncoderSoftware(t *testing.T) {
	f := &Ffmpeg{log: logger.Default()}
	if enc := f.H264Encoder(false); enc != "libx264" {
		t.Errorf("encoder %v", enc)
	}
	if f.encoders != nil {
		t.Error("software pick probed the binary")
	}
}

func TestH264EncoderHardwarePreference(t *testing.T) {
	f := &Ffmpeg{log: logger.Default(), encoders: map[string]struct{}{
		"h264_qsv": {}, "libx264": {},
	}}
	if enc := f.H264Encoder(true); enc != "h264_qsv" {
		t.Errorf("encoder %v", enc)
	}
}

func TestH264EncoderFallsBack(t *testing.T) {
	f := &Ffmpeg{log: logger.Default(), encoders: map[string]struct{}{"libx264": {}}}
	if enc := f.H264Encoder(true); enc != "libx264" {
		t.Errorf("encoder %v without hardware", enc)
	}
}

func TestTailWriterKeepsTail(t *testing.T) {
	w := newTailWriter(8)
	for _, chunk := range []string{"0123", "4567", "89ab"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	if got := w.String(); got != "456789ab" {
		t.Errorf("tail %q", got)
	}
}
