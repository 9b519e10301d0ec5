// Package socket binds the UDP port the preview's ICE mux runs on.
package socket

import (
	"errors"
	"net"
	"os"
	"runtime"
	"syscall"
)

const rollAttempts = 42
const udpBufferSize = 16 * 1024 * 1024

// ListenUDP binds the port and widens the kernel buffers, media
// bursts overflow the defaults.
func ListenUDP(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(udpBufferSize)
	_ = conn.SetWriteBuffer(udpBufferSize)
	return conn, nil
}

// ListenUDPPortRoll binds the given port or walks up to the next free
// one when it is taken.
func ListenUDPPortRoll(port int) (*net.UDPConn, error) {
	conn, err := ListenUDP(port)
	if err == nil {
		return conn, nil
	}
	if !IsPortBusy(err) {
		return nil, err
	}
	for p := port + 1; p < port+rollAttempts; p++ {
		if conn, err = ListenUDP(p); err == nil {
			return conn, nil
		}
	}
	return nil, errors.New("no available ports")
}

// IsPortBusy reports whether the bind failed because the port is
// already taken, on any platform.
func IsPortBusy(err error) bool {
	var sysErr *os.SyscallError
	if !errors.As(err, &sysErr) {
		return false
	}
	var errno syscall.Errno
	if !errors.As(sysErr, &errno) {
		return false
	}
	if errno == syscall.EADDRINUSE {
		return true
	}
	const WSAEADDRINUSE = 10048
	return runtime.GOOS == "windows" && errno == WSAEADDRINUSE
}
