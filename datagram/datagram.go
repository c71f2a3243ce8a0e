// Package datagram wraps a UDP socket with the blocking, timeout-aware
// bind/sendto/recvfrom contract the protocol engine is built against, and
// classifies every inbound event into one of a small set of sentinel
// Signal values the connection FSMs switch on.
package datagram

import (
	"errors"
	"net"
	"os"
	"time"
)

// Signal classifies the outcome of a Recv call so the caller's FSM can
// switch on it directly instead of inspecting raw errors and segments.
type Signal uint8

const (
	// CarriesData means a datagram was received (or, from SendTo, sent)
	// successfully. A received segment may be control-only.
	CarriesData Signal = iota
	// Timeout means no datagram arrived before the deadline.
	Timeout
	// Err means a transient error occurred (bad checksum, short read,
	// control-field mismatch with the caller's expectation).
	Err
	// Fatal means the local socket is broken beyond recovery.
	Fatal
	// RstReceived means the peer sent a segment with the RST flag set.
	RstReceived
	// FinAckUnexpected means a FIN|ACK arrived while the caller was not
	// expecting connection termination.
	FinAckUnexpected
	// WinAckReceived means the peer sent a WIN|ACK window probe.
	WinAckReceived
	// SynExpected means a SYN was expected but a different segment arrived.
	SynExpected
)

func (s Signal) String() string {
	switch s {
	case CarriesData:
		return "CARRIES_DATA"
	case Timeout:
		return "TIMEOUT"
	case Err:
		return "ERROR"
	case Fatal:
		return "FATAL"
	case RstReceived:
		return "RST_RECEIVED"
	case FinAckUnexpected:
		return "FINACK_UNEXPECTED"
	case WinAckReceived:
		return "WINACK_RECEIVED"
	case SynExpected:
		return "SYN_EXPECTED"
	default:
		return "UNKNOWN"
	}
}

// maxConsecutiveSendErrors bounds how many back-to-back transient send
// failures are tolerated before a connection is escalated to Fatal.
const maxConsecutiveSendErrors = 5

// pollWindow is the read deadline RecvFrom uses for a poll (timeout <= 0).
const pollWindow = time.Millisecond

// Endpoint wraps a bound UDP socket with deadline-based recv semantics and
// consecutive-failure escalation on the send path.
type Endpoint struct {
	conn *net.UDPConn

	consecutiveSendErrors int
}

// Bind opens a UDP socket on the given local address. An empty addr binds
// to an ephemeral port on all interfaces.
func Bind(addr string) (*Endpoint, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &Endpoint{conn: conn}, nil
}

// LocalAddr returns the endpoint's bound local address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// SendTo writes b as a single UDP datagram to dst. Consecutive failures
// escalate the returned Signal from Err to Fatal once
// maxConsecutiveSendErrors of them have occurred in a row, matching the "single send mismatch is
// transient, a run of them is not" error-kind split.
func (e *Endpoint) SendTo(b []byte, dst *net.UDPAddr) Signal {
	n, err := e.conn.WriteToUDP(b, dst)
	if err != nil || n != len(b) {
		e.consecutiveSendErrors++
		if e.consecutiveSendErrors >= maxConsecutiveSendErrors {
			return Fatal
		}
		return Err
	}
	e.consecutiveSendErrors = 0
	return CarriesData
}

// RecvFrom blocks for up to timeout waiting for a datagram, writing it
// into buf. It returns the number of bytes read, the sender's address,
// and Timeout as the signal if the deadline elapses before any data
// arrives. A timeout <= 0 is a poll: it returns a datagram that is
// already queued, waiting at most pollWindow for one. Segment-level
// classification (RST/FIN|ACK/WIN|ACK/checksum errors) is layered on top
// by the caller, which owns segment semantics; this method only
// distinguishes "data arrived" (CarriesData), "timed out" (Timeout), a
// failed read (Err), and a socket whose deadline cannot be set (Fatal).
func (e *Endpoint) RecvFrom(buf []byte, timeout time.Duration) (int, *net.UDPAddr, Signal) {
	if timeout <= 0 {
		// A deadline already in the past fails the read before any
		// queued datagram is looked at.
		timeout = pollWindow
	}
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, Fatal
	}
	n, raddr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil, Timeout
		}
		return 0, nil, Err
	}
	return n, raddr, CarriesData
}
