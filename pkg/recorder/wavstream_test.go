package recorder

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWavStreamHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.wav")
	w, err := newWavStream(path, 44100, 2)
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]int16, 44100*2) // one second, stereo
	pcm[0], pcm[1] = 1, -1
	if err := w.Write(pcm); err != nil {
		t.Fatal(err)
	}
	if w.Duration() != time.Second {
		t.Errorf("expected 1s of audio, got %v", w.Duration())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != riffHeaderSize+len(pcm)*2 {
		t.Fatalf("wrong file size %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Errorf("bad magic: %q %q", data[0:4], data[8:12])
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 2 {
		t.Errorf("wrong channel count %d", ch)
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 44100 {
		t.Errorf("wrong sample rate %d", rate)
	}
	if dsize := binary.LittleEndian.Uint32(data[40:44]); dsize != uint32(len(pcm)*2) {
		t.Errorf("wrong data size %d", dsize)
	}
	if s0 := int16(binary.LittleEndian.Uint16(data[44:46])); s0 != 1 {
		t.Errorf("wrong first sample %d", s0)
	}
}

func TestWavStreamEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.wav")
	w, err := newWavStream(path, 48000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Duration() != 0 {
		t.Errorf("empty stream has duration %v", w.Duration())
	}
}
