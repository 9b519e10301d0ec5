package preview

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/session"
)

type sampleSink struct {
	mu      sync.Mutex
	samples []media.Sample
	err     error
}

func (s *sampleSink) WriteSample(m media.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.samples = append(s.samples, m)
	return nil
}

// ivfStream builds a stream the way the encoder tee writes it: the
// 32-byte file header, then 12-byte frame headers with payloads.
func ivfStream(fps uint32, frames ...[]byte) []byte {
	buf := &bytes.Buffer{}
	h := make([]byte, 32)
	copy(h[0:], "DKIF")
	binary.LittleEndian.PutUint16(h[6:], 32)
	copy(h[8:], "VP80")
	binary.LittleEndian.PutUint16(h[12:], 640)
	binary.LittleEndian.PutUint16(h[14:], 360)
	binary.LittleEndian.PutUint32(h[16:], fps)
	binary.LittleEndian.PutUint32(h[20:], 1)
	binary.LittleEndian.PutUint32(h[24:], uint32(len(frames)))
	buf.Write(h)
	for i, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		buf.Write(fh)
		buf.Write(f)
	}
	return buf.Bytes()
}

func testPreview(t *testing.T) *Preview {
	t.Helper()
	p, err := New(config.Preview{Codec: "vp8", Fps: 15, Height: 360, Bitrate: 1000},
		session.NewController(config.Recorder{}, nil, logger.Default()), logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPumpCutsFramesIntoSamples(t *testing.T) {
	p := testPreview(t)
	sink := &sampleSink{}
	stop := make(chan struct{})
	defer close(stop)

	frames := [][]byte{{1, 2, 3}, {4, 5}, {6, 7, 8, 9}}
	p.pump(bytes.NewReader(ivfStream(15, frames...)), sink, stop)

	if len(sink.samples) != len(frames) {
		t.Fatalf("%d samples of %d frames", len(sink.samples), len(frames))
	}
	for i, s := range sink.samples {
		if !bytes.Equal(s.Data, frames[i]) {
			t.Errorf("frame %d: %v != %v", i, s.Data, frames[i])
		}
		if s.Duration != time.Second/15 {
			t.Errorf("frame %d duration %v", i, s.Duration)
		}
	}
}

func TestPumpStopsWhenViewerLeaves(t *testing.T) {
	p := testPreview(t)
	sink := &sampleSink{}
	stop := make(chan struct{})
	close(stop)

	p.pump(bytes.NewReader(ivfStream(15, []byte{1}, []byte{2})), sink, stop)
	if len(sink.samples) != 0 {
		t.Errorf("%d samples written after stop", len(sink.samples))
	}
}

func TestPumpSurvivesGarbage(t *testing.T) {
	p := testPreview(t)
	sink := &sampleSink{}
	stop := make(chan struct{})
	defer close(stop)

	p.pump(bytes.NewReader([]byte("not an ivf stream at all")), sink, stop)
	if len(sink.samples) != 0 {
		t.Errorf("%d samples out of garbage", len(sink.samples))
	}
}

func TestPumpStopsOnWriteFailure(t *testing.T) {
	p := testPreview(t)
	sink := &sampleSink{err: http.ErrAbortHandler}
	stop := make(chan struct{})
	defer close(stop)

	p.pump(bytes.NewReader(ivfStream(15, []byte{1}, []byte{2})), sink, stop)
	if len(sink.samples) != 0 {
		t.Errorf("%d samples past a dead track", len(sink.samples))
	}
}

func TestNewTrackCodecs(t *testing.T) {
	for _, codec := range []string{"vp8", "VP9", "h264", "vpx"} {
		if _, err := newTrack(codec); err != nil {
			t.Errorf("%v: %v", codec, err)
		}
	}
	if _, err := newTrack("theora"); err == nil {
		t.Error("unknown codec accepted")
	}
}

func TestSignalWithoutSessionRefused(t *testing.T) {
	p := testPreview(t)
	rec := httptest.NewRecorder()
	p.Signal(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("code %v with nothing to preview", rec.Code)
	}
}
