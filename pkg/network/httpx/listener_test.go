package httpx

import (
	"strings"
	"testing"
)

func TestListenerCreation(t *testing.T) {
	tests := []struct {
		addr   string
		port   string
		random bool
		error  bool
	}{
		{addr: ":", random: true},
		{addr: ":0", random: true},
		{addr: "", random: true},
		{addr: "https://garbage.com:99a9a", error: true},
		{addr: "localhost:18888", port: "18888"},
		{addr: "localhost:abc1", error: true},
	}

	for _, test := range tests {
		ls, err := NewListener(test.addr, false)

		if test.error {
			if err == nil {
				t.Errorf("expected error, but got none")
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error %v", err)
			continue
		}

		port := ls.GetPort()
		if test.random {
			if port <= 0 {
				t.Errorf("expected random port, but got none")
			}
		} else if !strings.HasSuffix(ls.Addr().String(), ":"+test.port) {
			t.Errorf("expected port %v, but got %v", test.port, port)
		}
		_ = ls.Close()
	}
}

func TestListenerPortRoll(t *testing.T) {
	l1, err := NewListener("127.0.0.1:18890", false)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l1.Close() }()

	l2, err := NewListener("127.0.0.1:18890", true)
	if err != nil {
		t.Fatalf("expected port roll, got %v", err)
	}
	defer func() { _ = l2.Close() }()

	if l2.GetPort() == l1.GetPort() {
		t.Errorf("expected a rolled port, got the same %v", l2.GetPort())
	}
}
