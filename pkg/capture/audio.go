package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
	"github.com/hashicorp/go-multierror"
)

// AudioDevice is one PCM byte stream, s16le interleaved at the rate
// and channel count the source was opened with.
type AudioDevice interface {
	ID() SourceID
	Open() error
	Read(p []byte) (int, error)
	Close() error
}

// one pushed block worth of play time
const blockDuration = 100 * time.Millisecond

// AudioSource reads 0..n devices into one shared bounded queue.
// Readers push with drop-oldest and never wait on the consumer. A dead
// device surfaces on Lost and the rest keep going.
type AudioSource struct {
	devs     []AudioDevice
	q        *blockQueue
	rate     int
	channels int
	lost     chan DeviceLost
	start    time.Time
	stopping uint32
	wg       sync.WaitGroup
	closed   bool
	log      *logger.Logger
}

// OpenAudio opens every device and starts its reader. Either all
// devices open or none, a partial start is rolled back.
func OpenAudio(devs []AudioDevice, rate, channels, queueSize int, log *logger.Logger) (*AudioSource, error) {
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("bad audio format %dHz/%dch", rate, channels)
	}
	s := &AudioSource{
		devs:     devs,
		q:        newBlockQueue(queueSize),
		rate:     rate,
		channels: channels,
		lost:     make(chan DeviceLost, len(devs)+1),
		log:      log,
	}
	for i, d := range devs {
		if err := d.Open(); err != nil {
			for _, prev := range devs[:i] {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("audio device %v: %w", d.ID(), err)
		}
	}
	s.start = time.Now()
	for _, d := range devs {
		s.wg.Add(1)
		go s.reader(d)
	}
	return s, nil
}

func (s *AudioSource) reader(dev AudioDevice) {
	defer s.wg.Done()
	frames := s.rate * int(blockDuration/time.Millisecond) / 1000
	buf := make([]byte, frames*s.channels*2)
	for {
		n, err := io.ReadFull(dev, buf)
		if n > 0 {
			s.q.push(&AudioBlock{
				Samples:  bytesToSamples(buf[:n-n%2]),
				Rate:     s.rate,
				Channels: s.channels,
				Ts:       time.Since(s.start),
				Source:   dev.ID(),
			})
			monitoring.AudioBlocks.Inc()
		}
		if err != nil {
			if atomic.LoadUint32(&s.stopping) == 0 {
				s.log.Warn().Err(err).Msgf("audio device %v stopped", dev.ID())
				s.lost <- DeviceLost{Source: dev.ID(), Offset: time.Since(s.start), Err: err}
			}
			return
		}
	}
}

// Blocks is the mixed device output, closed after Close drained the
// readers.
func (s *AudioSource) Blocks() <-chan *AudioBlock { return s.q.out() }

// Lost delivers devices that died mid-session.
func (s *AudioSource) Lost() <-chan DeviceLost { return s.lost }

// Dropped is the total number of evicted blocks.
func (s *AudioSource) Dropped() uint64 { return s.q.dropped() }

// Close stops the devices, waits for the readers, and closes the block
// channel. Buffered blocks stay readable until drained.
func (s *AudioSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	atomic.StoreUint32(&s.stopping, 1)
	var result *multierror.Error
	for _, d := range s.devs {
		if err := d.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("audio device %v: %w", d.ID(), err))
		}
	}
	s.wg.Wait()
	s.q.close()
	return result.ErrorOrNil()
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}
