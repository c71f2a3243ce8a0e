package segment

import (
	"testing"
)

func TestConstructSerializeExtractRoundTrip(t *testing.T) {
	payload := []byte("hello, microtcp")
	var s Segment
	if err := Construct(&s, 1000, 2000, FlagACK, 8192, payload); err != nil {
		t.Fatalf("Construct: %v", err)
	}

	buf := make([]byte, 0, MTU)
	wire, err := Serialize(buf[:cap(buf)], &s)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(wire) != HeaderSize+len(payload) {
		t.Fatalf("wire length = %d, want %d", len(wire), HeaderSize+len(payload))
	}

	if err := Validate(wire); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var got Segment
	if err := Extract(&got, wire); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Seq != 1000 || got.Ack != 2000 {
		t.Errorf("seq/ack mismatch: got %v/%v", got.Seq, got.Ack)
	}
	if got.Control != FlagACK {
		t.Errorf("control mismatch: got %v", got.Control)
	}
	if got.Window != 8192 {
		t.Errorf("window mismatch: got %d", got.Window)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("payload mismatch: got %q", got.Payload)
	}
}

func TestValidateRejectsBitFlip(t *testing.T) {
	var s Segment
	Construct(&s, 1, 1, FlagSYN, 8192, nil)
	buf := make([]byte, MTU)
	wire, err := Serialize(buf, &s)
	if err != nil {
		t.Fatal(err)
	}
	wire[0] ^= 0xFF
	if err := Validate(wire); err != ErrChecksum {
		t.Fatalf("Validate after bit flip = %v, want ErrChecksum", err)
	}
}

func TestSerializeRejectsOversizePayload(t *testing.T) {
	var s Segment
	big := make([]byte, MaxPayload+1)
	err := Construct(&s, 0, 0, 0, 0, big)
	if err != ErrPayloadTooLarge {
		t.Fatalf("Construct oversize payload = %v, want ErrPayloadTooLarge", err)
	}
	s.Payload = big
	if _, err := Serialize(make([]byte, MTU+1), &s); err != ErrPayloadTooLarge {
		t.Fatalf("Serialize oversize payload = %v, want ErrPayloadTooLarge", err)
	}
}

func TestExtractControlOnlySegmentHasNilPayload(t *testing.T) {
	var s Segment
	Construct(&s, 5, 6, FlagFIN|FlagACK, 100, nil)
	buf := make([]byte, MTU)
	wire, _ := Serialize(buf, &s)

	var got Segment
	if err := Extract(&got, wire); err != nil {
		t.Fatal(err)
	}
	if got.Payload != nil {
		t.Errorf("expected nil payload for control-only segment, got %v", got.Payload)
	}
	if got.DataLen != 0 {
		t.Errorf("expected DataLen 0, got %d", got.DataLen)
	}
}

func TestLastSequenceNumber(t *testing.T) {
	var s Segment
	Construct(&s, 100, 0, FlagSYN, 0, nil)
	if s.Last() != 100 {
		t.Errorf("SYN-only Last() = %v, want 100", s.Last())
	}

	Construct(&s, 100, 0, 0, 0, []byte("abcd"))
	if s.Last() != 103 {
		t.Errorf("4-byte data Last() = %v, want 103", s.Last())
	}
}

func TestFlagsString(t *testing.T) {
	f := FlagSYN | FlagACK
	if got := f.String(); got != "SA" {
		t.Errorf("String() = %q, want %q", got, "SA")
	}
}

func TestFlagsMaskStripsUnknownBits(t *testing.T) {
	f := Flags(0xFFFF)
	if f.Mask() != flagMask {
		t.Errorf("Mask() = %x, want %x", f.Mask(), flagMask)
	}
}
