package socket

import (
	"net"

	"github.com/microtcp/microtcp/congestion"
	"github.com/microtcp/microtcp/datagram"
	"github.com/microtcp/microtcp/rrb"
	"github.com/microtcp/microtcp/segment"
	"github.com/microtcp/microtcp/sendqueue"
)

// Connect performs the active three-way handshake against peerAddr. The
// socket must be in CLOSED (Bind must not have been called, or must have
// been undone by Close first); Connect always binds a new UDP endpoint at
// localAddr as a side effect.
func (s *Socket) Connect(localAddr, peerAddr string) error {
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

	raddr, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return err
	}
	s.peer = raddr

	iss, err := s.isnGen.Generate(s.ep.LocalAddr().(*net.UDPAddr), raddr)
	if err != nil {
		return s.fail("connect", StateClosed, ErrnoFatal)
	}
	s.iss = iss
	s.sndSeq = iss
	s.currWinSize = uint16(s.settings.RRBSize)

	if sig := s.sendSegment(s.iss, 0, segment.FlagSYN, nil); sig == datagram.Fatal {
		return s.fail("connect", StateClosed, ErrnoFatal)
	}
	s.state = StateSynSent

	rstRetries := s.settings.ConnectRSTRetries

synSent:
	for {
		_, sig := s.recvSegment(s.settings.AckTimeout, &s.segRecv)
		switch sig {
		case datagram.Timeout, datagram.Err:
			continue
		case datagram.RstReceived:
			rstRetries--
			if rstRetries <= 0 {
				return s.fail("connect", StateSynSent, ErrnoRetriesExhausted)
			}
			if sig := s.sendSegment(s.iss, 0, segment.FlagSYN, nil); sig == datagram.Fatal {
				return s.fail("connect", StateSynSent, ErrnoFatal)
			}
		case datagram.Fatal:
			return s.fail("connect", StateSynSent, ErrnoFatal)
		case datagram.FinAckUnexpected:
			return errAbandoned
		case datagram.CarriesData:
			if !s.segRecv.Control.HasAll(segment.FlagSYN|segment.FlagACK) || s.segRecv.Ack != s.iss.Add(1) {
				return errAbandoned
			}
			s.sndSeq = s.sndSeq.Add(1)
			s.irs = s.segRecv.Seq
			s.rcvNXT = s.irs.Add(1)
			s.peerWindow = uint32(s.segRecv.Window)
			s.state = StateSynAckReceived
			break synSent
		}
	}

	if sig := s.sendSegment(s.sndSeq, s.rcvNXT, segment.FlagACK, nil); sig == datagram.Fatal {
		return s.fail("connect", StateSynAckReceived, ErrnoFatal)
	}
	s.state = StateAckSent
	s.state = StateEstablished

	s.sq = sendqueue.New()
	s.rb = rrb.Create(s.settings.RRBSize, s.irs)
	s.cc = congestion.New(segment.MaxPayload, uint32(s.currWinSize))
	s.trace("established", "peer", s.peer.String())
	return nil
}
