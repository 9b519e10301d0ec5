package socket

import "testing"

func TestBusyPortIsRefused(t *testing.T) {
	l, err := ListenUDP(15394)
	if err != nil {
		t.Skipf("can't bind a test port: %v", err)
	}
	defer func() { _ = l.Close() }()

	if _, err = ListenUDP(15394); err == nil {
		t.Error("second bind on the same port succeeded")
	} else if !IsPortBusy(err) {
		t.Errorf("not a busy port error: %v", err)
	}
}

func TestPortRoll(t *testing.T) {
	l, err := ListenUDPPortRoll(15394)
	if err != nil {
		t.Skipf("can't bind a test port: %v", err)
	}
	defer func() { _ = l.Close() }()

	l2, err := ListenUDPPortRoll(15394)
	if err != nil {
		t.Fatalf("roll to a free port failed: %v", err)
	}
	_ = l2.Close()
}
