package recorder

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/capture"
	"github.com/glimlang/glimlang-recorder-dev/pkg/config"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

type stubEncoder struct {
	f        *os.File
	failViaN int // fail the first n writes
	failAll  bool
	writes   int
	closed   bool
}

func newStubEncoder(path string) (*stubEncoder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &stubEncoder{f: f}, nil
}

func (e *stubEncoder) Write(frame []byte) error {
	e.writes++
	if e.failAll || e.writes <= e.failViaN {
		return errors.New("pipe broke")
	}
	_, err := e.f.Write(frame)
	return err
}

func (e *stubEncoder) Close() error {
	e.closed = true
	return e.f.Close()
}

type stubMux struct {
	err   error
	calls [][]string
	onRun func(args []string) error
}

func (m *stubMux) Run(_ context.Context, args []string) error {
	m.calls = append(m.calls, args)
	if m.onRun != nil {
		return m.onRun(args)
	}
	if m.err != nil {
		return m.err
	}
	// the output path comes last, produce it the way ffmpeg would
	return os.WriteFile(args[len(args)-1], []byte{0}, 0644)
}

func testOpts() Options {
	return Options{
		W: 4, H: 4, Fps: 30,
		Quality:  config.QualityPreset{Name: "medium", Scale: 1, Speed: "fast", Crf: 25},
		Audio:    true,
		Rate:     8000,
		Channels: 1,
	}
}

func testFrame(ts time.Duration) *capture.Frame {
	return &capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), Ts: ts}
}

func testBlock(ts time.Duration, samples int) *capture.AudioBlock {
	return &capture.AudioBlock{Samples: make([]int16, samples), Rate: 8000, Channels: 1, Ts: ts}
}

func openTest(t *testing.T, dir string, o Options, mux muxRunner) (*Recording, *stubEncoder) {
	t.Helper()
	var enc *stubEncoder
	r, err := open(filepath.Join(dir, "out.mp4"), o, func(path string) (encoder, error) {
		e, err := newStubEncoder(path)
		enc = e
		return e, err
	}, mux, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	return r, enc
}

func TestRecordingFinalizeRemovesInterim(t *testing.T) {
	dir := t.TempDir()
	mux := &stubMux{}
	r, enc := openTest(t, dir, testOpts(), mux)

	for i := 0; i < 3; i++ {
		if err := r.WriteFrame(testFrame(time.Duration(i) * 33 * time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.WriteAudio(testBlock(0, 800)); err != nil {
		t.Fatal(err)
	}

	tmpVideo, tmpAudio := r.interimVideoPath(), r.interimAudioPath()
	for _, p := range []string{tmpVideo, tmpAudio} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("interim file missing before finalize: %v", p)
		}
	}

	res, err := r.Finalize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 3 || res.Path != filepath.Join(dir, "out.mp4") {
		t.Errorf("wrong result %+v", res)
	}
	if !enc.closed {
		t.Error("encoder left open")
	}
	for _, p := range []string{tmpVideo, tmpAudio, res.Path + ".lock"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%v not cleaned up", p)
		}
	}
	if len(mux.calls) != 1 {
		t.Fatalf("expected one mux call, got %d", len(mux.calls))
	}
}

func TestFinalizeFailureKeepsInterimFiles(t *testing.T) {
	dir := t.TempDir()
	mux := &stubMux{err: errors.New("mux exploded")}
	r, _ := openTest(t, dir, testOpts(), mux)

	if err := r.WriteFrame(testFrame(0)); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteAudio(testBlock(0, 800)); err != nil {
		t.Fatal(err)
	}

	_, err := r.Finalize(context.Background())
	var ff *FinalizeFailedError
	if !errors.As(err, &ff) {
		t.Fatalf("expected FinalizeFailedError, got %v", err)
	}
	if _, err := os.Stat(ff.VideoPath); err != nil {
		t.Errorf("preserved video missing: %v", ff.VideoPath)
	}
	if _, err := os.Stat(ff.AudioPath); err != nil {
		t.Errorf("preserved audio missing: %v", ff.AudioPath)
	}
	// the raw interim files themselves are never deleted on failure
	for _, p := range []string{r.interimVideoPath(), r.interimAudioPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("interim file deleted on failure: %v", p)
		}
	}
}

func TestFinalizeRejectsSilentMuxFailure(t *testing.T) {
	dir := t.TempDir()
	mux := &stubMux{}
	mux.onRun = func([]string) error { return nil } // exit 0, no output file
	r, _ := openTest(t, dir, testOpts(), mux)
	if err := r.WriteFrame(testFrame(0)); err != nil {
		t.Fatal(err)
	}

	_, err := r.Finalize(context.Background())
	var ff *FinalizeFailedError
	if !errors.As(err, &ff) {
		t.Fatalf("expected FinalizeFailedError, got %v", err)
	}
	if _, err := os.Stat(r.interimVideoPath()); err != nil {
		t.Error("interim video not kept")
	}
}
	dir := t.TempDir()
	r, _ := openTest(t, dir, testOpts(), &stubMux{})
	if _, err := r.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteFrame(testFrame(0)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := r.Finalize(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("second finalize: %v", err)
	}
}

func TestWriteFrameRetriesOnce(t *testing.T) {
	dir := t.TempDir()
	r, enc := openTest(t, dir, testOpts(), &stubMux{})
	enc.failViaN = 1

	if err := r.WriteFrame(testFrame(0)); err != nil {
		t.Errorf("one transient failure must be absorbed: %v", err)
	}

	enc.failAll = true
	err := r.WriteFrame(testFrame(0))
	var fatal *FatalIOError
	if !errors.As(err, &fatal) {
		t.Errorf("expected FatalIOError, got %v", err)
	}
}

func TestWriteFrameSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	r, _ := openTest(t, dir, testOpts(), &stubMux{})
	bad := &capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8))}
	var fatal *FatalIOError
	if err := r.WriteFrame(bad); !errors.As(err, &fatal) {
		t.Errorf("expected FatalIOError on a wrong frame size, got %v", err)
	}
}

func TestSecondRecordingOnSameOutputRejected(t *testing.T) {
	dir := t.TempDir()
	r1, _ := openTest(t, dir, testOpts(), &stubMux{})

	_, err := open(filepath.Join(dir, "out.mp4"), testOpts(), func(path string) (encoder, error) {
		return newStubEncoder(path)
	}, &stubMux{}, logger.Default())
	if err == nil || !strings.Contains(err.Error(), "owned by another") {
		t.Errorf("expected a lock rejection, got %v", err)
	}

	// the first recording is unaffected
	if err := r1.WriteFrame(testFrame(0)); err != nil {
		t.Errorf("first recording broken by the rejected second: %v", err)
	}
	if _, err := r1.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestMuxArgsAlignment(t *testing.T) {
	dir := t.TempDir()
	mux := &stubMux{}
	o := testOpts()
	r, _ := openTest(t, dir, o, mux)

	// 3s of video, audio present from 100ms on, ends early at 1s
	for i := 0; i < 90; i++ {
		if err := r.WriteFrame(testFrame(time.Duration(i) * 33 * time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.WriteAudio(testBlock(100*time.Millisecond, 8000)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}

	args := strings.Join(mux.calls[0], " ")
	if !strings.Contains(args, "-itsoffset 0.100") {
		t.Errorf("audio start offset not applied: %v", args)
	}
	if strings.Contains(args, "-shortest") {
		t.Errorf("early-ended audio must not trim the video: %v", args)
	}
}

func TestRotateConcatsSegments(t *testing.T) {
	dir := t.TempDir()
	o := testOpts()
	o.Audio = false
	o.Segmented = true
	var concatted bool
	mux := &stubMux{}
	mux.onRun = func(args []string) error {
		if strings.Contains(strings.Join(args, " "), "concat") {
			concatted = true
		}
		return os.WriteFile(args[len(args)-1], []byte{0}, 0644)
	}
	r, _ := openTest(t, dir, o, mux)

	if err := r.WriteFrame(testFrame(0)); err != nil {
		t.Fatal(err)
	}
	if err := r.Rotate(); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteFrame(testFrame(time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(r.parts) != 2 {
		t.Fatalf("expected 2 parts, got %v", r.parts)
	}

	if _, err := r.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !concatted {
		t.Error("segments were not concatenated")
	}
	if len(mux.calls) != 2 {
		t.Errorf("expected concat + mux, got %d calls", len(mux.calls))
	}
	for _, p := range r.parts {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("segment part %v not cleaned up", p)
		}
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		user string
		want func(string) bool
	}{
		{"%tag%_rec.mp4", "glim", "", func(s string) bool { return s == "glim_rec.mp4" }},
		{"%user%.mp4", "", "bob", func(s string) bool { return s == "bob.mp4" }},
		{"r_%rand:5%.mp4", "", "", func(s string) bool { return len(s) == len("r_.mp4")+5 }},
		{"%date:2006%.mp4", "", "", func(s string) bool {
			return s == time.Now().Format("2006")+".mp4"
		}},
		{"plain.mp4", "", "", func(s string) bool { return s == "plain.mp4" }},
	}
	for _, test := range tests {
		if got := ParseName(test.name, test.tag, test.user); !test.want(got) {
			t.Errorf("ParseName(%v) = %v", test.name, got)
		}
	}
}
