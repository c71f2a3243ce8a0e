package socket

import (
	"time"

	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/segment"
)

// Shutdown performs a graceful active close: send FIN|ACK, await the
// peer's ACK (or handle a simultaneous close if the peer's FIN crosses
// ours), wait out TIME_WAIT, then release the connection's buffers.
func (s *Socket) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished {
		return errNotEstablished
	}

	if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagFIN|segment.FlagACK, nil); sig == datagram.Fatal {
		return s.fail("shutdown", StateEstablished, ErrnoFatal)
	}
	s.state = StateFinWait1

	retries := s.settings.ShutdownFinAckRetries

finWait1:
	for {
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.Timeout, datagram.Err:
			retries--
			if retries <= 0 {
				return s.fail("shutdown", StateFinWait1, ErrnoRetriesExhausted)
			}
			if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagFIN|segment.FlagACK, nil); sig == datagram.Fatal {
				return s.fail("shutdown", StateFinWait1, ErrnoFatal)
			}
		case datagram.RstReceived:
			return s.closed1AfterFail(ErrnoPeerReset)
		case datagram.FinAckUnexpected:
			s.state = StateFinDouble
			break finWait1
		case datagram.Fatal:
			return s.fail("shutdown", StateFinWait1, ErrnoFatal)
		case datagram.CarriesData:
			if s.segRecv.Control.HasAll(segment.FlagACK) && s.segRecv.Ack == s.sndSeq.Add(1) {
				s.sndSeq = s.sndSeq.Add(1)
				s.state = StateFinWait2Recv
				break finWait1
			}
			// Data-bearing segment while waiting: stay.
		}
	}

	switch s.state {
	case StateFinDouble:
		if err := s.finDouble(); err != nil {
			return err
		}
	case StateFinWait2Recv:
		if err := s.finWait2Recv(); err != nil {
			return err
		}
	}

	s.state = StateTimeWait
	if err := s.timeWait(); err != nil {
		return err
	}

	return s.closed1Success()
}

// finDouble handles simultaneous close: the peer's FIN arrived before
// our own FIN was acked. Acknowledge the peer's FIN, then keep awaiting
// the ACK of our own FIN under the same retry discipline.
func (s *Socket) finDouble() error {
	s.rcvNXT = s.rcvNXT.Add(1)
	if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil); sig == datagram.Fatal {
		return s.fail("shutdown", StateFinDouble, ErrnoFatal)
	}

	retries := s.settings.ShutdownFinAckRetries
	for {
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.Timeout, datagram.Err:
			retries--
			if retries <= 0 {
				return s.fail("shutdown", StateFinDouble, ErrnoRetriesExhausted)
			}
		case datagram.RstReceived:
			return s.closed1AfterFail(ErrnoPeerReset)
		case datagram.Fatal:
			return s.fail("shutdown", StateFinDouble, ErrnoFatal)
		case datagram.CarriesData:
			if s.segRecv.Control.HasAll(segment.FlagACK) && s.segRecv.Ack == s.sndSeq.Add(1) {
				s.sndSeq = s.sndSeq.Add(1)
				return nil
			}
		}
	}
}

// finWait2Recv awaits the peer's own FIN|ACK within finack_wait_time
// (2*MSL, reusing the TIME_WAIT budget as that wall-clock bound).
func (s *Socket) finWait2Recv() error {
	deadline := time.Now().Add(s.settings.ShutdownTimeWaitPeriod)
	for time.Now().Before(deadline) {
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.RstReceived:
			return s.closed1AfterFail(ErrnoPeerReset)
		case datagram.Fatal:
			return s.fail("shutdown", StateFinWait2Recv, ErrnoFatal)
		case datagram.FinAckUnexpected:
			s.rcvNXT = s.rcvNXT.Add(1)
			s.state = StateFinWait2Send
			return nil
		case datagram.CarriesData:
			// Peer may still be draining: ignore data-bearing segments.
		}
	}
	s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagRST, nil)
	return s.fail("shutdown", StateFinWait2Recv, ErrnoRetriesExhausted)
}

func (s *Socket) finWait2SendRequired() bool {
	return s.state == StateFinWait2Send
}

// timeWait spends the configured TIME_WAIT budget re-ACKing any
// retransmitted FIN|ACK from the peer.
func (s *Socket) timeWait() error {
	if s.finWait2SendRequired() {
		if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil); sig == datagram.Fatal {
			return s.fail("shutdown", StateFinWait2Send, ErrnoFatal)
		}
	}
	deadline := time.Now().Add(s.settings.ShutdownTimeWaitPeriod)
	for time.Now().Before(deadline) {
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.RstReceived:
			return s.closed1AfterFail(ErrnoPeerReset)
		case datagram.FinAckUnexpected:
			s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil)
		}
	}
	return nil
}

func (s *Socket) closed1Success() error {
	if s.rb != nil {
		s.rb.Destroy()
		s.rb = nil
	}
	s.sq = nil
	s.cc = nil
	s.state = StateClosed
	return nil
}

func (s *Socket) closed1AfterFail(errno Errno) error {
	if s.rb != nil {
		s.rb.Destroy()
		s.rb = nil
	}
	s.sq = nil
	s.cc = nil
	return s.fail("shutdown", s.state, errno)
}
