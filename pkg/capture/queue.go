package capture

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/glimlang/glimlang-recorder-dev/pkg/monitoring"
)

// blockQueue is a bounded audio block queue shared by all device
// readers. When full the oldest block is evicted so that a push from a
// device callback never blocks on a lagging consumer.
type blockQueue struct {
	ch    chan *AudioBlock
	drops uint64
}

func newBlockQueue(size int) *blockQueue {
	if size <= 0 {
		size = 64
	}
	return &blockQueue{ch: make(chan *AudioBlock, size)}
}

func (q *blockQueue) push(b *AudioBlock) {
	for {
		select {
		case q.ch <- b:
			return
		default:
		}
		select {
		case <-q.ch:
			atomic.AddUint64(&q.drops, 1)
			monitoring.AudioDropped.Inc()
		default:
		}
	}
}

func (q *blockQueue) out() <-chan *AudioBlock { return q.ch }

func (q *blockQueue) close() { close(q.ch) }

func (q *blockQueue) dropped() uint64 { return atomic.LoadUint64(&q.drops) }

// mailbox is a single-slot latest-wins frame handoff. The producer
// overwrites an unconsumed frame and counts it as dropped, the consumer
// takes whatever is the most recent or nothing.
type mailbox struct {
	mu    sync.Mutex
	img   *image.RGBA
	drops uint64
}

func (m *mailbox) put(img *image.RGBA) {
	m.mu.Lock()
	if m.img != nil {
		m.drops++
		monitoring.WebcamDropped.Inc()
	}
	m.img = img
	m.mu.Unlock()
}

func (m *mailbox) take() (img *image.RGBA, ok bool) {
	m.mu.Lock()
	img, ok = m.img, m.img != nil
	m.img = nil
	m.mu.Unlock()
	return
}

func (m *mailbox) dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
