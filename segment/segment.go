// Package segment implements the μTCP wire format: a fixed 32-byte header
// followed by an optional payload, with a CRC-32 integrity trailer field
// folded into the header itself.
//
// Field layout (all multi-byte fields little-endian, fixed across the wire):
//
//	seq_number  4 bytes
//	ack_number  4 bytes
//	control     2 bytes (flag bitmask)
//	window      2 bytes
//	data_len    4 bytes
//	reserved   12 bytes
//	checksum    4 bytes (CRC-32, computed with this field zeroed)
package segment

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/microtcp/microtcp/internal"
	"github.com/microtcp/microtcp/seq"
)

// HeaderSize is the fixed on-wire header length in bytes.
const HeaderSize = 32

// MaxPayload is the largest payload a segment may carry.
const MaxPayload = 1400 - HeaderSize

// MTU is the largest total segment size (header + payload).
const MTU = HeaderSize + MaxPayload

// Flags is the control bit field carried in the header's control word.
type Flags uint16

const (
	FlagWIN Flags = 1 << 11
	FlagACK Flags = 1 << 12
	FlagRST Flags = 1 << 13
	FlagSYN Flags = 1 << 14
	FlagFIN Flags = 1 << 15

	flagMask Flags = FlagWIN | FlagACK | FlagRST | FlagSYN | FlagFIN
)

// HasAll reports whether f carries every flag set in mask.
func (f Flags) HasAll(mask Flags) bool { return f&mask == mask }

// HasAny reports whether f carries any flag set in mask.
func (f Flags) HasAny(mask Flags) bool { return f&mask != 0 }

// Mask returns f restricted to the bits defined by flagMask.
func (f Flags) Mask() Flags { return f & flagMask }

func (f Flags) String() string {
	var b [5]byte
	i := 0
	put := func(c byte, set bool) {
		if set {
			b[i] = c
			i++
		}
	}
	put('F', f.HasAny(FlagFIN))
	put('S', f.HasAny(FlagSYN))
	put('R', f.HasAny(FlagRST))
	put('A', f.HasAny(FlagACK))
	put('W', f.HasAny(FlagWIN))
	if i == 0 {
		return "-"
	}
	return string(b[:i])
}

var (
	// ErrShort is returned when a byte slice is too small to hold a header.
	ErrShort = errors.New("segment: buffer shorter than header size")
	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("segment: payload exceeds MSS")
	// ErrChecksum is returned by Validate when the CRC-32 does not match.
	ErrChecksum = errors.New("segment: checksum mismatch")
	// ErrReservedNonZero is returned when the header's reserved field is
	// not all-zero, a sign of a malformed or foreign-protocol datagram.
	ErrReservedNonZero = errors.New("segment: reserved field not zero")
)

// Segment is an in-memory, decoded view of a μTCP segment. Payload is a
// borrowed slice, never copied by Construct/Extract: both point into
// caller-owned or socket-owned buffers.
type Segment struct {
	Seq     seq.Value
	Ack     seq.Value
	Control Flags
	Window  uint16
	DataLen uint32
	Payload []byte
}

// Last returns the sequence number of the last byte (or virtual byte, for
// SYN/FIN) this segment occupies.
func (s *Segment) Last() seq.Value {
	n := s.DataLen
	if s.Control.HasAny(FlagSYN | FlagFIN) {
		n++
	}
	if n == 0 {
		return s.Seq
	}
	return s.Seq.Add(seq.Size(n - 1))
}

// Construct fills dst (the socket's pre-allocated segment-build slot) with
// the fields of a segment bound for the wire. Payload is stored as a
// borrowed slice, not copied. window should be the socket's current
// advertised free receive space.
func Construct(dst *Segment, sequence, ack seq.Value, control Flags, window uint16, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	dst.Seq = sequence
	dst.Ack = ack
	dst.Control = control.Mask()
	dst.Window = window
	dst.DataLen = uint32(len(payload))
	dst.Payload = payload
	return nil
}

// Serialize encodes s into dst (the socket's pre-allocated byte-stream
// build buffer), which must have capacity for at least HeaderSize+len(s.Payload)
// bytes, and returns the portion of dst actually written. The checksum is
// computed over the header (with the checksum field zeroed) followed by the
// payload, then written into the checksum field of the returned slice.
func Serialize(dst []byte, s *Segment) ([]byte, error) {
	if len(s.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	total := HeaderSize + len(s.Payload)
	if cap(dst) < total {
		return nil, ErrShort
	}
	dst = dst[:total]

	binary.LittleEndian.PutUint32(dst[0:4], uint32(s.Seq))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(s.Ack))
	binary.LittleEndian.PutUint16(dst[8:10], uint16(s.Control.Mask()))
	binary.LittleEndian.PutUint16(dst[10:12], s.Window)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(len(s.Payload)))
	for i := 16; i < 28; i++ {
		dst[i] = 0
	}
	binary.LittleEndian.PutUint32(dst[28:32], 0) // checksum placeholder

	copy(dst[HeaderSize:], s.Payload)

	sum := crc32.ChecksumIEEE(dst)
	binary.LittleEndian.PutUint32(dst[28:32], sum)
	return dst, nil
}

// Validate checks the CRC-32 of a raw received byte stream. It zeroes the
// checksum field in-place to recompute, then restores it, returning nil if
// the recomputed value matches what was on the wire.
func Validate(raw []byte) error {
	if len(raw) < HeaderSize {
		return ErrShort
	}
	want := binary.LittleEndian.Uint32(raw[28:32])
	binary.LittleEndian.PutUint32(raw[28:32], 0)
	got := crc32.ChecksumIEEE(raw)
	binary.LittleEndian.PutUint32(raw[28:32], want)
	if got != want {
		return ErrChecksum
	}
	return nil
}

// Extract decodes the header of raw into dst (the socket's pre-allocated
// segment-receive slot). dst.Payload is set to a borrowed slice into raw
// immediately following the header, or nil if data_len is zero. Extract
// does not validate the checksum; call Validate first.
func Extract(dst *Segment, raw []byte) error {
	if len(raw) < HeaderSize {
		return ErrShort
	}
	if !internal.IsZeroed(raw[16:28]...) {
		return ErrReservedNonZero
	}
	dst.Seq = seq.Value(binary.LittleEndian.Uint32(raw[0:4]))
	dst.Ack = seq.Value(binary.LittleEndian.Uint32(raw[4:8]))
	dst.Control = Flags(binary.LittleEndian.Uint16(raw[8:10])).Mask()
	dst.Window = binary.LittleEndian.Uint16(raw[10:12])
	dst.DataLen = binary.LittleEndian.Uint32(raw[12:16])

	if dst.DataLen == 0 {
		dst.Payload = nil
		return nil
	}
	end := HeaderSize + int(dst.DataLen)
	if end > len(raw) {
		return ErrShort
	}
	dst.Payload = raw[HeaderSize:end]
	return nil
}
