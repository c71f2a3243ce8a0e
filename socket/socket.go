// Package socket ties the segment codec, receive ring buffer, send queue,
// and congestion controller together behind the public connection API:
// Bind/Connect/Accept/Send/Recv/Shutdown/Close, each implemented as a
// small finite state machine over datagram.Signal events.
package socket

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/microtcp/microtcp/congestion"
	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/internal"
	"github.com/microtcp/microtcp/rrb"
	"github.com/microtcp/microtcp/segment"
	"github.com/microtcp/microtcp/seq"
	"github.com/microtcp/microtcp/sendqueue"
)

// Socket is a single μTCP connection endpoint. One Socket serves exactly
// one connection: there is no shared listener multiplexing many peers
// over one descriptor, matching the one-accept-yields-one-connection
// scope of the protocol.
type Socket struct {
	mu sync.Mutex
	logger

	settings Settings
	state    State
	lastErr  error

	ep   *datagram.Endpoint
	peer *net.UDPAddr

	iss    seq.Value // initial send sequence number
	sndSeq seq.Value // the socket's single send-side sequence counter: advances
	                 // only once a byte is cumulatively acknowledged (or a
	                 // control segment like SYN/FIN is confirmed), never on
	                 // the optimistic send itself

	irs    seq.Value // initial receive sequence number
	rcvNXT seq.Value // ack_number: next byte expected from peer

	currWinSize uint16 // currently advertised free receive space
	peerWindow  uint32 // peer's last-advertised free receive space

	// Working buffers, owned exclusively by either the send or receive
	// path and never shared across the two.
	segBuild    segment.Segment
	streamBuild []byte
	streamRecv  []byte
	segRecv     segment.Segment

	sq  *sendqueue.Queue
	rb  *rrb.RRB
	cc  *congestion.Controller

	isnGen *isnGenerator

	counters counters

	pendingFinAck bool // set when recv observed a FIN|ACK but still delivered buffered data
}

// New creates an unbound socket in the CLOSED state with the given
// settings. Pass DefaultSettings() for protocol defaults.
func New(settings Settings, log *slog.Logger) (*Socket, error) {
	gen, err := newISNGenerator()
	if err != nil {
		return nil, fmt.Errorf("socket: generating ISN source: %w", err)
	}
	s := &Socket{
		logger:     logger{l: log},
		settings:   settings,
		state:      StateClosed,
		streamRecv: make([]byte, segment.MTU),
		isnGen:     gen,
	}
	internal.SliceReuse(&s.streamBuild, segment.MTU)
	return s, nil
}

// State returns the socket's current connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error that caused the most recent FSM exit, or
// nil if the socket has not failed.
func (s *Socket) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats returns a snapshot of the socket's traffic counters.
func (s *Socket) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters.snapshot()
}

// Bind opens the underlying UDP socket at localAddr and moves the socket
// into LISTEN, ready for Accept.
func (s *Socket) Bind(localAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		return errNotClosed
	}
	ep, err := datagram.Bind(localAddr)
	if err != nil {
		return err
	}
	_ = ep.TuneBuffers(s.settings.RRBSize, s.settings.RRBSize)
	s.ep = ep
	s.state = StateListen
	s.trace("bind", "addr", ep.LocalAddr().String())
	return nil
}

// Close tears down the connection immediately, releasing per-connection
// buffers. It is safe to call Close on an already-closed socket.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rb != nil {
		s.rb.Destroy()
		s.rb = nil
	}
	s.sq = nil
	s.cc = nil
	if s.ep != nil {
		err := s.ep.Close()
		s.ep = nil
		s.state = StateClosed
		return err
	}
	s.state = StateClosed
	return nil
}

// recvSegment blocks up to timeout for one segment (timeout<=0 performs a
// non-blocking poll), validating its checksum and classifying the
// outcome into a datagram.Signal the FSMs can switch on directly.
func (s *Socket) recvSegment(timeout time.Duration, dst *segment.Segment) (*net.UDPAddr, datagram.Signal) {
	n, raddr, sig := s.ep.RecvFrom(s.streamRecv, timeout)
	if sig != datagram.CarriesData {
		return raddr, sig
	}
	raw := s.streamRecv[:n]
	if err := segment.Validate(raw); err != nil {
		s.trace("checksum invalid", "err", err)
		return raddr, datagram.Err
	}
	if err := segment.Extract(dst, raw); err != nil {
		s.trace("extract failed", "err", err)
		return raddr, datagram.Err
	}
	s.counters.packetsReceived++
	s.counters.bytesReceived += uint64(dst.DataLen)

	switch {
	case dst.Control.HasAny(segment.FlagRST):
		return raddr, datagram.RstReceived
	case dst.Control.HasAll(segment.FlagFIN | segment.FlagACK):
		return raddr, datagram.FinAckUnexpected
	case dst.Control.HasAll(segment.FlagWIN | segment.FlagACK):
		return raddr, datagram.WinAckReceived
	default:
		return raddr, datagram.CarriesData
	}
}

// sendSegment constructs, serializes, and transmits a control/data
// segment to the current peer, returning the datagram-level signal.
func (s *Socket) sendSegment(sequence, ack seq.Value, control segment.Flags, payload []byte) datagram.Signal {
	if err := segment.Construct(&s.segBuild, sequence, ack, control, s.currWinSize, payload); err != nil {
		s.logerr("construct failed", "err", err)
		return datagram.Err
	}
	wire, err := segment.Serialize(s.streamBuild[:cap(s.streamBuild)], &s.segBuild)
	if err != nil {
		s.logerr("serialize failed", "err", err)
		return datagram.Err
	}
	sig := s.ep.SendTo(wire, s.peer)
	if sig == datagram.CarriesData {
		s.counters.packetsSent++
		s.counters.bytesSent += uint64(len(payload))
	}
	return sig
}

func (s *Socket) fail(fsm string, st State, errno Errno) error {
	switch errno {
	case ErrnoPeerReset:
		s.state = StateReset
	case ErrnoPeerClosed:
		s.state = StateClosingByPeer
	default:
		s.state = StateInvalid
	}
	err := &FSMError{FSM: fsm, State: st, Errno: errno}
	s.lastErr = err
	s.logerr("fsm failed", "fsm", fsm, "state", st.String(), "errno", errno.String())
	return err
}
