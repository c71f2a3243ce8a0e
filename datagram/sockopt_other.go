//go:build !linux

package datagram

// TuneBuffers is a no-op on platforms where SO_RCVBUF/SO_SNDBUF tuning via
// golang.org/x/sys/unix is unavailable.
func (e *Endpoint) TuneBuffers(rcvBufSize, sndBufSize int) error {
	return nil
}
