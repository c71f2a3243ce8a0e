package socket

import (
	"net"

	"github.com/microtcp/microtcp/congestion"
	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/rrb"
	"github.com/microtcp/microtcp/segment"
	"github.com/microtcp/microtcp/sendqueue"
)

// Accept blocks until a peer completes a three-way handshake, then moves
// the socket into ESTABLISHED. The socket must already be in LISTEN
// (i.e. Bind has been called).
func (s *Socket) Accept() (peerAddr *net.UDPAddr, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateListen {
		return nil, errNotListening
	}

	retries := s.settings.AcceptSynAckRetries

	for {
		var raddr *net.UDPAddr
		var sig datagram.Signal
		raddr, sig = s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.Timeout, datagram.Err, datagram.FinAckUnexpected:
			continue
		case datagram.RstReceived:
			continue
		case datagram.Fatal:
			return nil, s.fail("accept", StateListen, ErrnoFatal)
		case datagram.CarriesData:
			if !s.segRecv.Control.HasAll(segment.FlagSYN) {
				// Non-SYN segment while listening: reset the peer and stay.
				s.peer = raddr
				s.sendSegment(0, 0, segment.FlagRST, nil)
				s.peer = nil
				continue
			}
		default:
			continue
		}

		s.peer = raddr
		iss, err := s.isnGen.Generate(s.ep.LocalAddr().(*net.UDPAddr), raddr)
		if err != nil {
			return nil, s.fail("accept", StateSynReceived, ErrnoFatal)
		}
		s.iss = iss
		s.sndSeq = iss
		s.irs = s.segRecv.Seq
		s.rcvNXT = s.irs.Add(1)
		s.currWinSize = uint16(s.settings.RRBSize)

		s.state = StateSynReceived
		s.trace("handshake", "state", s.state.String())

		if sig := s.sendSegment(s.iss, s.rcvNXT, segment.FlagSYN|segment.FlagACK, nil); sig == datagram.Fatal {
			return nil, s.fail("accept", StateSynReceived, ErrnoFatal)
		}
		s.state = StateSynAckSent

	synAckSent:
		for {
			_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
			switch sig {
			case datagram.Timeout, datagram.Err, datagram.FinAckUnexpected:
				retries--
				if retries <= 0 {
					s.state = StateListen
					retries = s.settings.AcceptSynAckRetries
					break synAckSent
				}
				if sig := s.sendSegment(s.iss, s.rcvNXT, segment.FlagSYN|segment.FlagACK, nil); sig == datagram.Fatal {
					return nil, s.fail("accept", StateSynAckSent, ErrnoFatal)
				}
			case datagram.RstReceived:
				s.state = StateListen
				retries = s.settings.AcceptSynAckRetries
				break synAckSent
			case datagram.Fatal:
				return nil, s.fail("accept", StateSynAckSent, ErrnoFatal)
			case datagram.CarriesData:
				if s.segRecv.Control.HasAll(segment.FlagACK) && s.segRecv.Ack == s.iss.Add(1) {
					s.sndSeq = s.sndSeq.Add(1)
					s.peerWindow = uint32(s.segRecv.Window)
					s.state = StateAckSent
					break synAckSent
				}
			}
		}

		if s.state == StateAckSent {
			s.state = StateEstablished
			s.sq = sendqueue.New()
			s.rb = rrb.Create(s.settings.RRBSize, s.irs)
			s.cc = congestion.New(segment.MaxPayload, uint32(s.currWinSize))
			s.trace("established", "peer", s.peer.String())
			return s.peer, nil
		}
		// Returned to LISTEN: loop to await a fresh SYN.
	}
}
