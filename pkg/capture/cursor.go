package capture

import (
	"sync"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
	hook "github.com/robotn/gohook"
)

// CursorState is the last reported pointer position in virtual desktop
// coordinates.
type CursorState struct {
	X, Y int
}

// CursorTracker reports the pointer position for the overlay. ok is
// false until the first movement arrived.
type CursorTracker interface {
	Position() (CursorState, bool)
	Close() error
}

// Hook owns the single global input hook. It tracks the pointer and
// dispatches registered key-down codes, the process can run only one
// of these at a time.
type Hook struct {
	mu      sync.RWMutex
	pos     CursorState
	seen    bool
	keys    map[uint16]func()
	done    chan struct{}
	started bool
	once    sync.Once
	log     *logger.Logger
}

func NewHook(log *logger.Logger) *Hook {
	return &Hook{keys: map[uint16]func(){}, done: make(chan struct{}), log: log}
}

// OnKeyDown binds a callback to a raw key code. Bind before Start.
func (h *Hook) OnKeyDown(rawcode uint16, f func()) { h.keys[rawcode] = f }

// Start begins consuming OS input events.
func (h *Hook) Start() {
	h.started = true
	evs := hook.Start()
	go func() {
		defer close(h.done)
		for ev := range evs {
			switch ev.Kind {
			case hook.MouseMove, hook.MouseDrag:
				h.mu.Lock()
				h.pos = CursorState{X: int(ev.X), Y: int(ev.Y)}
				h.seen = true
				h.mu.Unlock()
			case hook.KeyDown:
				if f, ok := h.keys[ev.Rawcode]; ok {
					f()
				}
			}
		}
	}()
}

func (h *Hook) Position() (CursorState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pos, h.seen
}

func (h *Hook) Close() error {
	h.once.Do(func() {
		if h.started {
			hook.End()
			<-h.done
		}
	})
	return nil
}
