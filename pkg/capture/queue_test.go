package capture

import (
	"image"
	"testing"
	"time"
)

func tsOf(i int) time.Duration { return time.Duration(i) * time.Millisecond }

func timeoutC(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(3 * time.Second)
}

func TestBlockQueueDropsOldest(t *testing.T) {
	q := newBlockQueue(2)

	for i := 0; i < 5; i++ {
		q.push(&AudioBlock{Ts: tsOf(i)})
	}
	if q.dropped() != 3 {
		t.Errorf("expected 3 dropped blocks, got %v", q.dropped())
	}

	got := []*AudioBlock{<-q.out(), <-q.out()}
	if got[0].Ts != tsOf(3) || got[1].Ts != tsOf(4) {
		t.Errorf("expected the newest blocks to survive, got %v %v", got[0].Ts, got[1].Ts)
	}
}

func TestBlockQueuePushNeverBlocks(t *testing.T) {
	q := newBlockQueue(1)
	done := make(chan struct{})
	go func() {
		// no consumer at all
		for i := 0; i < 1000; i++ {
			q.push(&AudioBlock{Ts: tsOf(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-timeoutC(t):
		t.Fatal("push blocked on a full queue")
	}
}

func TestMailboxLatestWins(t *testing.T) {
	var m mailbox

	if _, ok := m.take(); ok {
		t.Error("empty mailbox returned a frame")
	}

	a := image.NewRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewRGBA(image.Rect(0, 0, 2, 2))
	m.put(a)
	m.put(b)

	img, ok := m.take()
	if !ok || img != b {
		t.Errorf("expected the latest frame, got %v %v", img, ok)
	}
	if m.dropped() != 1 {
		t.Errorf("expected 1 overwritten frame, got %v", m.dropped())
	}
	if _, ok := m.take(); ok {
		t.Error("second take returned a stale frame")
	}
}
