package recorder

import (
	"encoding/binary"
	"time"

	"github.com/hashicorp/go-multierror"
)

// wavStream is the interim audio container, PCM appended raw with the
// RIFF header back-patched on close once the size is known.
type wavStream struct {
	rate     int
	channels int
	path     string
	wav      *file
	written  int64
}

const riffHeaderSize = 44

func newWavStream(path string, rate, channels int) (*wavStream, error) {
	wav, err := newFile(path)
	if err != nil {
		return nil, err
	}
	// pad for RIFF
	if err = wav.Write(make([]byte, riffHeaderSize)); err != nil {
		_ = wav.Close()
		return nil, err
	}
	return &wavStream{rate: rate, channels: channels, path: path, wav: wav}, nil
}

func (w *wavStream) Write(pcm []int16) error {
	bs := make([]byte, len(pcm)*2)
	for i, ln := 0, len(pcm); i < ln; i++ {
		binary.LittleEndian.PutUint16(bs[i*2:i*2+2], uint16(pcm[i]))
	}
	if err := w.wav.Write(bs); err != nil {
		return err
	}
	w.written += int64(len(bs))
	return nil
}

// Duration is the play time of the written PCM.
func (w *wavStream) Duration() time.Duration {
	bytesPerSec := w.rate * w.channels * 2
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(w.written) * time.Second / time.Duration(bytesPerSec)
}

func (w *wavStream) Close() error {
	var result *multierror.Error
	if err := w.wav.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	size, err := w.wav.Size()
	if err != nil {
		result = multierror.Append(result, err)
	}
	if size > 0 {
		// write an actual RIFF header
		if err = w.wav.WriteAtStart(riffWavHeader(uint32(size), w.rate, w.channels)); err != nil {
			result = multierror.Append(result, err)
		}
		if err = w.wav.Flush(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err = w.wav.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// riffWavHeader creates RIFF WAV header.
// See: http://soundfile.sapp.org/doc/WaveFormat
func riffWavHeader(fSize uint32, fq int, channels int) []byte {
	const (
		bits  = 16
		chunk = 36
	)
	ch := byte(channels)
	aSize := fSize - riffHeaderSize
	bitrate := uint32(fq*int(ch)*bits) >> 3
	size := aSize + chunk
	header := [riffHeaderSize]byte{
		// ChunkID
		'R', 'I', 'F', 'F',
		// ChunkSize
		byte(size & 0xff), byte((size >> 8) & 0xff), byte((size >> 16) & 0xff), byte((size >> 24) & 0xff),
		// Format
		'W', 'A', 'V', 'E',
		// Subchunk1ID
		'f', 'm', 't', ' ',
		// Subchunk1Size
		bits, 0, 0, 0,
		// AudioFormat
		1, 0,
		// NumChannels
		ch, 0,
		// SampleRate
		byte(fq & 0xff), byte((fq >> 8) & 0xff), byte((fq >> 16) & 0xff), byte((fq >> 24) & 0xff),
		// ByteRate == SampleRate * NumChannels * BitsPerSample/8
		byte(bitrate & 0xff), byte((bitrate >> 8) & 0xff), byte((bitrate >> 16) & 0xff), byte((bitrate >> 24) & 0xff),
		// BlockAlign == NumChannels * BitsPerSample/8
		ch * bits >> 3, 0,
		// BitsPerSample
		bits, 0,
		// Subchunk2ID
		'd', 'a', 't', 'a',
		// Subchunk2Size == NumSamples * NumChannels * BitsPerSample/8
		byte(aSize & 0xff), byte((aSize >> 8) & 0xff), byte((aSize >> 16) & 0xff), byte((aSize >> 24) & 0xff),
	}
	return header[:]
}
