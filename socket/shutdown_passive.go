package socket

import (
	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/segment"
)

// FinishPassiveClose completes the passive shutdown sequence after Recv
// has reported ErrnoPeerClosed (the peer's FIN|ACK was observed): send
// the ACK for the peer's FIN, send our own FIN|ACK, then await its ACK.
// The ACK is sent on every call, and segments still in the send queue
// are not retransmitted before the FIN|ACK.
func (s *Socket) FinishPassiveClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosingByPeer && s.state != StateFinAckReceived {
		return errNotEstablished
	}

	s.state = StateFinAckReceived
	if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil); sig == datagram.Fatal {
		return s.fail("shutdown_passive", StateFinAckReceived, ErrnoFatal)
	}

	s.state = StateCloseWait
	if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagFIN|segment.FlagACK, nil); sig == datagram.Fatal {
		return s.fail("shutdown_passive", StateCloseWait, ErrnoFatal)
	}
	s.state = StateLastAck

	retries := s.settings.ShutdownFinAckRetries
	for {
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.Timeout, datagram.Err:
			retries--
			if retries <= 0 {
				s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagRST, nil)
				return s.closed1AfterFail(ErrnoRetriesExhausted)
			}
		case datagram.RstReceived:
			return s.closed1AfterFail(ErrnoPeerReset)
		case datagram.Fatal:
			return s.fail("shutdown_passive", StateLastAck, ErrnoFatal)
		case datagram.CarriesData:
			if s.segRecv.Control.HasAll(segment.FlagACK) && s.segRecv.Ack == s.sndSeq.Add(1) {
				s.sndSeq = s.sndSeq.Add(1)
				return s.closed1Success()
			}
		}
	}
}
