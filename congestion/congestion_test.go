package congestion

import "testing"

const mss = 1368

func TestInitialWindow(t *testing.T) {
	c := New(mss, 8192)
	if c.Cwnd() != 3*mss {
		t.Fatalf("initial cwnd = %d, want %d", c.Cwnd(), 3*mss)
	}
	if c.Ssthresh() != 8192 {
		t.Fatalf("initial ssthresh = %d, want 8192", c.Ssthresh())
	}
	if c.Mode() != SlowStart {
		t.Fatalf("initial mode = %v, want SlowStart", c.Mode())
	}
}

func TestSlowStartGrowthAfterThreeAcks(t *testing.T) {
	c := New(mss, 1<<20) // large ssthresh so we stay in slow start
	for i := 0; i < 3; i++ {
		c.OnAdvancingAck(1)
	}
	want := uint32(6 * mss)
	if c.Cwnd() != want {
		t.Fatalf("cwnd after 3 acks = %d, want %d", c.Cwnd(), want)
	}
}

func TestFastRetransmitOnThirdDuplicateAck(t *testing.T) {
	c := New(mss, 8192)
	c.OnAdvancingAck(5) // grow cwnd a bit first
	if c.OnDuplicateAck() {
		t.Fatal("first dup ack should not trigger fast retransmit")
	}
	if c.OnDuplicateAck() {
		t.Fatal("second dup ack should not trigger fast retransmit")
	}
	if !c.OnDuplicateAck() {
		t.Fatal("third dup ack should trigger fast retransmit")
	}
	if c.Cwnd() != mss {
		t.Fatalf("cwnd after fast retransmit = %d, want %d", c.Cwnd(), mss)
	}
	if c.Mode() != CongestionAvoidance {
		t.Fatalf("mode after fast retransmit = %v, want CongestionAvoidance", c.Mode())
	}
}

func TestTimeoutResetsToSlowStart(t *testing.T) {
	c := New(mss, 8192)
	c.OnAdvancingAck(10)
	prevCwnd := c.Cwnd()
	c.OnTimeout()
	if c.Cwnd() != mss {
		t.Fatalf("cwnd after timeout = %d, want %d", c.Cwnd(), mss)
	}
	if c.Ssthresh() != prevCwnd/2 {
		t.Fatalf("ssthresh after timeout = %d, want %d", c.Ssthresh(), prevCwnd/2)
	}
	if c.Mode() != SlowStart {
		t.Fatalf("mode after timeout = %v, want SlowStart", c.Mode())
	}
}

func TestSendWindowRespectsPeerWindow(t *testing.T) {
	c := New(mss, 8192)
	w := c.SendWindow(100, 0)
	if w != 100 {
		t.Fatalf("SendWindow = %d, want 100 (peer window smaller than cwnd)", w)
	}
	w = c.SendWindow(100, 100)
	if w != 0 {
		t.Fatalf("SendWindow with fully outstanding window = %d, want 0", w)
	}
}
