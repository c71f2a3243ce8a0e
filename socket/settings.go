package socket

import "time"

// Settings holds the tunable protocol parameters, mirroring the
// microtcp_settings accessor surface: every field has a documented default
// and can be overridden per socket before the handshake begins.
type Settings struct {
	// AckTimeout bounds each blocking receive attempt.
	AckTimeout time.Duration
	// RRBSize is the receive ring buffer's capacity in bytes, also used
	// as the initial advertised window.
	RRBSize int
	// ConnectRSTRetries bounds RST retries during an active handshake.
	ConnectRSTRetries int
	// AcceptSynAckRetries bounds SYN|ACK retransmissions during a
	// passive handshake.
	AcceptSynAckRetries int
	// ShutdownFinAckRetries bounds FIN|ACK retransmissions during
	// shutdown.
	ShutdownFinAckRetries int
	// ShutdownTimeWaitPeriod is the TIME_WAIT budget (2*MSL).
	ShutdownTimeWaitPeriod time.Duration
	// WindowProbeRetries bounds WIN|ACK probe attempts while the peer's
	// advertised window is zero. Supplements the source settings API,
	// which predates window-probe support.
	WindowProbeRetries int
}

// DefaultSettings returns the protocol's documented defaults.
func DefaultSettings() Settings {
	return Settings{
		AckTimeout:              200 * time.Millisecond,
		RRBSize:                 8192,
		ConnectRSTRetries:       3,
		AcceptSynAckRetries:     5,
		ShutdownFinAckRetries:   15,
		ShutdownTimeWaitPeriod:  20 * time.Second,
		WindowProbeRetries:      10,
	}
}
