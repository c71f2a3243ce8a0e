//go:build linux

package datagram

import (
	"golang.org/x/sys/unix"
)

// TuneBuffers sizes the kernel's socket receive/send buffers to match the
// protocol's receive ring buffer, so the kernel does not drop datagrams
// faster than the application-level RRB can absorb them under load.
func (e *Endpoint) TuneBuffers(rcvBufSize, sndBufSize int) error {
	sc, err := e.conn.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	ctrlErr := sc.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBufSize); err != nil {
			setErr = err
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sndBufSize); err != nil {
			setErr = err
			return
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return setErr
}
