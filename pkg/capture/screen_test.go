package capture

import (
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

type fakeGrabber struct {
	grabs uint64
	delay time.Duration
	// fail returns an error for grab numbers in [from, to)
	failFrom, failTo uint64
	closed           bool
}

func (g *fakeGrabber) Grab(r Region) (*image.RGBA, error) {
	n := atomic.AddUint64(&g.grabs, 1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if n > g.failFrom && n <= g.failTo {
		return nil, errors.New("grab broke")
	}
	return image.NewRGBA(r.Bounds()), nil
}

func (g *fakeGrabber) Close() error {
	g.closed = true
	return nil
}

func TestScreenSourceCapture(t *testing.T) {
	s, err := OpenScreen(&fakeGrabber{}, Region{W: 8, H: 8}, 0, 0, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	for i := 1; i <= 3; i++ {
		f, err := s.Capture()
		if err != nil || f == nil {
			t.Fatalf("capture %d: %v %v", i, f, err)
		}
		if f.Seq != uint64(i) {
			t.Errorf("expected seq %d, got %d", i, f.Seq)
		}
		if got := f.Image.Bounds(); got.Dx() != 8 || got.Dy() != 8 {
			t.Errorf("wrong frame size %v", got)
		}
	}
}

func TestScreenSourceEmptyRegion(t *testing.T) {
	if _, err := OpenScreen(&fakeGrabber{}, Region{}, 0, 0, logger.Default()); err == nil {
		t.Error("expected an empty region error")
	}
}

func TestScreenSourceTransientErrors(t *testing.T) {
	// grab 1 is the open probe, grabs 2..4 fail, then recovery
	g := &fakeGrabber{failFrom: 1, failTo: 4}
	s, err := OpenScreen(g, Region{W: 4, H: 4}, 0, 10, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	for i := 0; i < 3; i++ {
		f, err := s.Capture()
		if err != nil || f != nil {
			t.Fatalf("expected an empty tick, got %v %v", f, err)
		}
	}
	f, err := s.Capture()
	if err != nil || f == nil {
		t.Fatalf("expected recovery, got %v %v", f, err)
	}
}

func TestScreenSourceFailLimit(t *testing.T) {
	g := &fakeGrabber{failFrom: 1, failTo: 1 << 60}
	s, err := OpenScreen(g, Region{W: 4, H: 4}, 0, 3, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	var last error
	for i := 0; i < 3; i++ {
		_, last = s.Capture()
	}
	if !errors.Is(last, ErrCaptureUnavailable) {
		t.Errorf("expected ErrCaptureUnavailable after the limit, got %v", last)
	}
}

func TestScreenSourceSlowGrabIsEmptyTick(t *testing.T) {
	g := &fakeGrabber{delay: 50 * time.Millisecond}
	s, err := OpenScreen(g, Region{W: 4, H: 4}, 5*time.Millisecond, 0, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	f, err := s.Capture()
	if err != nil || f != nil {
		t.Fatalf("expected a timed out empty tick, got %v %v", f, err)
	}

	// the late result lands on a later tick, no second grab is issued
	deadline := time.Now().Add(time.Second)
	for f == nil && time.Now().Before(deadline) {
		if f, err = s.Capture(); err != nil {
			t.Fatal(err)
		}
	}
	if f == nil {
		t.Fatal("late grab never delivered")
	}
	if n := atomic.LoadUint64(&g.grabs); n != 2 {
		t.Errorf("expected 2 grabs total (probe + one), got %d", n)
	}
}

func TestScreenSourceCloseReleasesBackend(t *testing.T) {
	g := &fakeGrabber{}
	s, err := OpenScreen(g, Region{W: 4, H: 4}, 0, 0, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !g.closed {
		t.Error("backend was not closed")
	}
	if _, err := s.Capture(); !errors.Is(err, ErrCaptureUnavailable) {
		t.Errorf("capture after close: %v", err)
	}
}
