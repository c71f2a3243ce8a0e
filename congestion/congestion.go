// Package congestion implements the send-side congestion controller:
// slow-start and congestion-avoidance cwnd growth, duplicate-ACK fast
// retransmit, and peer-window-zero probe pacing.
package congestion

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/microtcp/microtcp/internal"
)

// Mode is the controller's current growth regime.
type Mode uint8

const (
	SlowStart Mode = iota
	CongestionAvoidance
)

func (m Mode) String() string {
	if m == SlowStart {
		return "slow-start"
	}
	return "congestion-avoidance"
}

// dupAckThreshold is the number of consecutive duplicate ACKs that
// triggers a fast retransmit.
const dupAckThreshold = 3

// Controller tracks the sender's congestion window and slow-start
// threshold, and the duplicate-ACK counter used for fast retransmit.
type Controller struct {
	mu sync.Mutex

	mss     uint32
	cwnd    uint32
	ssthresh uint32
	mode    Mode
	dupAcks int

	// probeLimiter caps the probe rate so a persistently zero peer window
	// does not get hammered with WIN|ACK probes.
	probeLimiter *rate.Limiter
	// probeBackoff widens the gap between probes exponentially on top of
	// the limiter, reset once the peer's window opens back up.
	probeBackoff internal.Backoff
}

// New returns a Controller initialised per the handshake's advertised
// window: cwnd = 3*mss, ssthresh = advertisedWindow.
func New(mss, advertisedWindow uint32) *Controller {
	return &Controller{
		mss:          mss,
		cwnd:         3 * mss,
		ssthresh:     advertisedWindow,
		mode:         SlowStart,
		probeLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		probeBackoff: internal.NewBackoff(internal.BackoffTCPConn),
	}
}

// Cwnd returns the current congestion window in bytes.
func (c *Controller) Cwnd() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cwnd
}

// Ssthresh returns the current slow-start threshold in bytes.
func (c *Controller) Ssthresh() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ssthresh
}

// Mode returns the controller's current growth regime.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// OnAdvancingAck reports ackedSegments newly cumulatively-acknowledged
// segments, growing cwnd according to the current mode, and resets the
// duplicate-ACK counter.
func (c *Controller) OnAdvancingAck(ackedSegments int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dupAcks = 0
	for i := 0; i < ackedSegments; i++ {
		switch c.mode {
		case SlowStart:
			c.cwnd += c.mss
			if c.cwnd > c.ssthresh {
				c.mode = CongestionAvoidance
			}
		case CongestionAvoidance:
			inc := (c.mss * c.mss) / c.cwnd
			if inc < 1 {
				inc = 1
			}
			c.cwnd += inc
		}
	}
}

// OnDuplicateAck records a duplicate ACK and reports whether the
// duplicate-ACK threshold has just been reached, meaning the caller
// should fast-retransmit. Crossing the threshold also applies the
// fast-retransmit cwnd/ssthresh adjustment and switches to
// congestion avoidance.
func (c *Controller) OnDuplicateAck() (fastRetransmit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dupAcks++
	if c.dupAcks < dupAckThreshold {
		return false
	}
	c.ssthresh = max32(c.mss, c.cwnd/2)
	c.cwnd = c.mss
	c.mode = CongestionAvoidance
	c.dupAcks = 0
	return true
}

// OnTimeout applies the retransmission-timeout penalty: halve cwnd into
// ssthresh, reset cwnd to one segment, and return to slow start.
func (c *Controller) OnTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ssthresh = max32(c.cwnd/2, c.mss)
	c.cwnd = c.mss
	c.mode = SlowStart
	c.dupAcks = 0
}

// SendWindow returns the number of bytes permitted to be in flight right
// now, given the peer's advertised window and the bytes currently
// outstanding.
func (c *Controller) SendWindow(peerWindow, outstanding uint32) uint32 {
	c.mu.Lock()
	cwnd := c.cwnd
	c.mu.Unlock()
	w := cwnd
	if peerWindow < w {
		w = peerWindow
	}
	if outstanding >= w {
		return 0
	}
	return w - outstanding
}

// WaitProbe blocks until the next WIN|ACK window probe is due to be sent.
// It combines a token-bucket floor (probeLimiter) with an exponential
// backoff that widens on repeated probes, so a persistently zero window
// does not get flooded with probes.
func (c *Controller) WaitProbe(ctx context.Context) error {
	if err := c.probeLimiter.Wait(ctx); err != nil {
		return err
	}
	c.probeBackoff.Miss()
	return nil
}

// OnProbeSuccess resets the probe backoff once the peer's window opens
// back up.
func (c *Controller) OnProbeSuccess() {
	c.probeBackoff.Hit()
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
