package socket

import (
	"context"

	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/segment"
	"github.com/microtcp/microtcp/seq"
)

// Send transmits buf in full, cycling SEND_DATA_ROUND -> RECV_ACK_ROUND
// (-> RETRANSMISSIONS on loss) until every byte is acknowledged, growing
// the congestion window per the slow-start/congestion-avoidance rules
// and fast-retransmitting on three duplicate ACKs.
func (s *Socket) Send(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInvalid {
		return 0, errInvalid
	}
	if s.state != StateEstablished {
		return 0, errNotEstablished
	}
	if !s.sq.IsEmpty() {
		return 0, errSendQueueNotEmpty
	}

	remaining := len(buf)
	sentTotal := 0

	for remaining > 0 {
		if err := s.waitForPeerWindow(); err != nil {
			return sentTotal, err
		}

		window := s.cc.SendWindow(s.peerWindow, 0)
		if int(window) > remaining {
			window = uint32(remaining)
		}
		if window == 0 {
			continue
		}

		tentativeSeq := s.sndSeq
		sentThisRound := 0
		for sentThisRound < int(window) {
			segSize := int(window) - sentThisRound
			if segSize > segment.MaxPayload {
				segSize = segment.MaxPayload
			}
			payload := buf[sentTotal+sentThisRound : sentTotal+sentThisRound+segSize]
			if sig := s.sendSegment(tentativeSeq, s.rcvNXT, segment.FlagACK, payload); sig == datagram.Fatal {
				return sentTotal, s.fail("send", StateEstablished, ErrnoFatal)
			}
			s.sq.Enqueue(tentativeSeq, seq.Size(segSize), payload)
			tentativeSeq = tentativeSeq.Add(seq.Size(segSize))
			sentThisRound += segSize
		}

		n, err := s.recvAckRound()
		sentTotal += n
		remaining -= n
		if err != nil {
			return sentTotal, err
		}
	}
	return sentTotal, nil
}

// recvAckRound blocks receiving ACKs until the send queue drains,
// handling duplicate ACKs (fast retransmit), advancing ACKs (cwnd
// growth), timeouts (retransmission round), and peer-initiated
// termination signals.
func (s *Socket) recvAckRound() (int, error) {
	advanced := 0
	for !s.sq.IsEmpty() {
		frontSeq, _, _, _ := s.sq.Front()
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.Timeout:
			s.cc.OnTimeout()
			if err := s.retransmissionRound(); err != nil {
				return advanced, err
			}
		case datagram.Err:
			continue
		case datagram.FinAckUnexpected:
			s.state = StateClosingByPeer
			return advanced, s.fail("send", StateEstablished, ErrnoPeerClosed)
		case datagram.RstReceived:
			return advanced, s.fail("send", StateEstablished, ErrnoPeerReset)
		case datagram.Fatal:
			return advanced, s.fail("send", StateEstablished, ErrnoFatal)
		case datagram.CarriesData:
			if !s.segRecv.Control.HasAll(segment.FlagACK) {
				continue
			}
			n, err := s.handleAck(frontSeq)
			advanced += n
			if err != nil {
				return advanced, err
			}
		}
	}
	return advanced, nil
}

// handleAck applies one received ACK segment to the send queue and
// congestion controller, returning the number of newly acknowledged
// bytes. An ack that matches neither the front sequence number nor any
// send-queue node boundary signals the two ends have desynchronized.
func (s *Socket) handleAck(frontSeq seq.Value) (int, error) {
	ack := s.segRecv.Ack
	if ack == frontSeq {
		if s.cc.OnDuplicateAck() {
			if _, size, buf, ok := s.sq.Front(); ok {
				s.sendSegment(frontSeq, s.rcvNXT, segment.FlagACK, buf[:size])
				s.counters.packetsLost++
				s.counters.bytesLost += uint64(size)
			}
		}
		s.updatePeerWindow()
		return 0, nil
	}

	removed := s.sq.Dequeue(ack)
	if removed == 0 {
		return 0, s.fail("send", StateEstablished, ErrnoDesync)
	}
	ackedBytes := int(seq.Diff(ack, s.sndSeq))
	s.sndSeq = ack
	s.cc.OnAdvancingAck(removed)
	s.updatePeerWindow()
	return ackedBytes, nil
}

func (s *Socket) updatePeerWindow() {
	outstanding := uint32(s.sq.StoredBytes())
	win := uint32(s.segRecv.Window)
	if win > outstanding {
		s.peerWindow = win - outstanding
	} else {
		s.peerWindow = 0
	}
}

// retransmissionRound retransmits the send queue's current front while the
// cumulative resend stays within cwnd, folding a non-blocking ACK poll
// through the same handling after each resend. Every iteration resumes
// from the queue's current front: nodes behind a front that is still
// unacknowledged are not retransmitted in this round, and that front may
// be resent again if cwnd leaves room.
func (s *Socket) retransmissionRound() error {
	bytesResent := 0
	cwnd := int(s.cc.Cwnd())

	for seqNum, size, buf, ok := s.sq.Front(); ok; seqNum, size, buf, ok = s.sq.Front() {
		if bytesResent+int(size) > cwnd {
			break
		}
		if sig := s.sendSegment(seqNum, s.rcvNXT, segment.FlagACK, buf[:size]); sig == datagram.Fatal {
			return s.fail("send", StateEstablished, ErrnoFatal)
		}
		bytesResent += int(size)

		_, sig := s.recvSegment(0, &s.segRecv) // non-blocking poll
		if sig == datagram.CarriesData && s.segRecv.Control.HasAll(segment.FlagACK) {
			before := s.sq.StoredSegments()
			if _, err := s.handleAck(seqNum); err != nil {
				return err
			}
			if s.sq.StoredSegments() == before {
				// Front did not advance: the next iteration re-reads the same front.
				continue
			}
			// Front advanced (fast-forward): loop naturally re-reads Front().
		}
	}
	return nil
}

// waitForPeerWindow blocks, pacing WIN|ACK probes via the congestion
// controller's limiter, until the peer reports a non-zero window.
func (s *Socket) waitForPeerWindow() error {
	if s.peerWindow > 0 {
		return nil
	}
	retries := s.settings.WindowProbeRetries
	for s.peerWindow == 0 {
		if retries <= 0 {
			return s.fail("send", StateEstablished, ErrnoRetriesExhausted)
		}
		if err := s.cc.WaitProbe(context.Background()); err != nil {
			return err
		}
		if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagWIN|segment.FlagACK, nil); sig == datagram.Fatal {
			return s.fail("send", StateEstablished, ErrnoFatal)
		}
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		if sig == datagram.CarriesData && s.segRecv.Control.HasAll(segment.FlagACK) {
			s.updatePeerWindow()
			if s.peerWindow > 0 {
				s.cc.OnProbeSuccess()
			}
		}
		retries--
	}
	return nil
}
