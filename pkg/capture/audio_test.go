package capture

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

type fakeDevice struct {
	id       SourceID
	r        *io.PipeReader
	w        *io.PipeWriter
	openErr  error
	opened   bool
	released bool
}

func newFakeDevice(id SourceID) *fakeDevice {
	r, w := io.Pipe()
	return &fakeDevice{id: id, r: r, w: w}
}

func (d *fakeDevice) ID() SourceID { return d.id }

func (d *fakeDevice) Open() error {
	if d.openErr != nil {
		return d.openErr
	}
	d.opened = true
	return nil
}

func (d *fakeDevice) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *fakeDevice) Close() error {
	d.released = true
	return d.r.Close()
}

// test format: 1kHz mono makes one 100ms block 100 samples, 200 bytes
const (
	testRate  = 1000
	testBlock = 200
)

func TestOpenAudioRollsBackPartialStart(t *testing.T) {
	good := newFakeDevice(SourceMic)
	bad := newFakeDevice(SourceLoopback)
	bad.openErr = errors.New("device busy")

	if _, err := OpenAudio([]AudioDevice{good, bad}, testRate, 1, 4, logger.Default()); err == nil {
		t.Fatal("expected an open error")
	}
	if !good.released {
		t.Error("first device left open after a failed start")
	}
}

func TestAudioBlocksFlow(t *testing.T) {
	dev := newFakeDevice(SourceMic)
	s, err := OpenAudio([]AudioDevice{dev}, testRate, 1, 4, logger.Default())
	if err != nil {
		t.Fatal(err)
	}

	raw := make([]byte, testBlock)
	raw[0], raw[1] = 0x01, 0x00 // 1
	raw[2], raw[3] = 0xff, 0xff // -1
	go func() { _, _ = dev.w.Write(raw) }()

	select {
	case b := <-s.Blocks():
		if b.Source != SourceMic || b.Rate != testRate || b.Channels != 1 {
			t.Errorf("wrong block envelope: %+v", b)
		}
		if len(b.Samples) != 100 || b.Samples[0] != 1 || b.Samples[1] != -1 {
			t.Errorf("wrong samples: len %d, head %v %v", len(b.Samples), b.Samples[0], b.Samples[1])
		}
		if b.Duration() != 100*time.Millisecond {
			t.Errorf("wrong block duration %v", b.Duration())
		}
	case <-timeoutC(t):
		t.Fatal("no block arrived")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-s.Blocks(); ok {
		t.Error("blocks channel still open after close")
	}
}

func TestAudioDeviceLost(t *testing.T) {
	dev := newFakeDevice(SourceLoopback)
	s, err := OpenAudio([]AudioDevice{dev}, testRate, 1, 4, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	// half a block then the device dies
	go func() {
		_, _ = dev.w.Write(make([]byte, testBlock/2))
		_ = dev.w.Close()
	}()

	select {
	case lost := <-s.Lost():
		if lost.Source != SourceLoopback {
			t.Errorf("wrong source %v", lost.Source)
		}
		if lost.Offset < 0 {
			t.Errorf("negative loss offset %v", lost.Offset)
		}
	case <-timeoutC(t):
		t.Fatal("no device loss reported")
	}

	select {
	case b := <-s.Blocks():
		if len(b.Samples) != 50 {
			t.Errorf("expected the partial block to flush, got %d samples", len(b.Samples))
		}
	case <-timeoutC(t):
		t.Fatal("partial block never flushed")
	}
}

func TestAudioTwoDevicesFullQueueNeverDeadlocks(t *testing.T) {
	mic := newFakeDevice(SourceMic)
	loop := newFakeDevice(SourceLoopback)
	s, err := OpenAudio([]AudioDevice{mic, loop}, testRate, 1, 2, logger.Default())
	if err != nil {
		t.Fatal(err)
	}

	// both devices flood a queue of 2 with nobody consuming
	fed := make(chan struct{}, 2)
	for _, d := range []*fakeDevice{mic, loop} {
		go func(d *fakeDevice) {
			for i := 0; i < 20; i++ {
				if _, err := d.w.Write(make([]byte, testBlock)); err != nil {
					break
				}
			}
			fed <- struct{}{}
		}(d)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-fed:
		case <-timeoutC(t):
			t.Fatal("a device writer blocked, the queue is not bounded")
		}
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	var drained int
	for range s.Blocks() {
		drained++
	}
	if drained > 2 {
		t.Errorf("queue of 2 delivered %d blocks", drained)
	}
	if s.Dropped() == 0 {
		t.Error("expected dropped blocks on a flooded queue")
	}
}
