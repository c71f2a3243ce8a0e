package socket

import (
	"time"

	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/segment"
	"github.com/microtcp/microtcp/seq"
)

// RecvFlags modifies Recv's blocking behavior.
type RecvFlags uint8

const (
	// WaitAll blocks until len(buf) bytes have been delivered or a
	// terminal condition is reached; receive timeouts do not end the wait.
	WaitAll RecvFlags = 1 << iota
	// DontWait polls for new segments without blocking and (without
	// WaitAll) returns as soon as a poll finds none.
	DontWait
)

// Recv delivers up to len(buf) bytes of the peer's byte stream into buf,
// returning the number of bytes delivered. A return of 0 with a nil
// error means the read timed out with no data available (only possible
// without WaitAll).
func (s *Socket) Recv(buf []byte, flags RecvFlags) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInvalid {
		return 0, errInvalid
	}
	if s.state != StateEstablished {
		return 0, errNotEstablished
	}

	if s.pendingFinAck {
		s.pendingFinAck = false
		s.state = StateClosingByPeer
		return 0, s.fail("recv", StateEstablished, ErrnoPeerClosed)
	}

	delivered := s.rb.Pop(buf)

	timeout := s.settings.AckTimeout
	if flags&DontWait != 0 {
		timeout = 0
	}

	for delivered < len(buf) {
		_, sig := s.recvSegment(timeout, &s.segRecv)
		switch sig {
		case datagram.Fatal:
			return delivered, s.fail("recv", StateEstablished, ErrnoFatal)
		case datagram.FinAckUnexpected:
			if s.segRecv.Seq == s.rcvNXT {
				s.rcvNXT = s.rcvNXT.Add(1)
				if delivered > 0 {
					s.pendingFinAck = true
					return delivered, nil
				}
				s.state = StateClosingByPeer
				return delivered, s.fail("recv", StateEstablished, ErrnoPeerClosed)
			}
			// Out-of-order FIN: ignore until in-sequence.
			continue
		case datagram.RstReceived:
			s.state = StateReset
			return delivered, s.fail("recv", StateEstablished, ErrnoPeerReset)
		case datagram.WinAckReceived:
			s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil)
			continue
		case datagram.Timeout:
			delivered += s.rb.Pop(buf[delivered:])
			if flags&WaitAll != 0 {
				continue
			}
			return delivered, nil
		case datagram.Err:
			continue
		case datagram.CarriesData:
			if len(s.segRecv.Payload) == 0 {
				continue
			}
			s.rb.Append(s.segRecv.Seq, s.segRecv.Payload)
			s.rcvNXT = s.rb.LastConsumedSeqNumber().Add(seq.Size(s.rb.ConsumableBytes()) + 1)
			delivered += s.rb.Pop(buf[delivered:])
			s.currWinSize = uint16(s.settings.RRBSize - s.rb.ConsumableBytes())
			s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil)
		}
	}
	return delivered, nil
}

// RecvTimed is identical to Recv but bounded by an idle budget: it returns
// as soon as maxIdle elapses with no new data arriving, rather than
// blocking indefinitely under WaitAll. Each byte delivered resets the
// budget, so a slow-but-steady peer is never cut off mid-stream.
func (s *Socket) RecvTimed(buf []byte, maxIdle time.Duration) (int, error) {
	deadline := time.Now().Add(maxIdle)

	delivered := 0
	for delivered < len(buf) && time.Now().Before(deadline) {
		n, err := s.Recv(buf[delivered:], 0)
		delivered += n
		if err != nil {
			return delivered, err
		}
		if n == 0 {
			continue
		}
		deadline = time.Now().Add(maxIdle)
	}
	return delivered, nil
}
