// Package rrb implements the receive ring buffer: a fixed-size circular
// byte store paired with a sorted, merged list of out-of-order arrival
// blocks, used to reassemble an in-order byte stream from segments that
// may arrive duplicated, reordered, or with gaps.
package rrb

import (
	"sync"

	"github.com/microtcp/microtcp/seq"
)

// block describes a contiguous run of bytes received out of order,
// not yet contiguous with last_consumed_seq_number.
type block struct {
	seqNum seq.Value
	size   seq.Size
	next   *block
}

// RRB is a receive ring buffer of fixed capacity N. The zero value is not
// usable; construct with Create.
type RRB struct {
	mu sync.Mutex

	buf []byte // capacity N, physical storage indexed by seqNum mod N.
	n   seq.Size

	lastConsumed  seq.Value // last byte already delivered to the application
	consumable    seq.Size  // contiguous bytes ready for Pop, starting at lastConsumed+1
	blocks        *block    // sorted ascending by seqNum, never adjacent/overlapping
}

// Create allocates an RRB of the given capacity, initialised so that the
// next expected byte is currentSeqNumber+1 (i.e. currentSeqNumber is
// treated as already consumed, matching the handshake's initial
// sequence-number bookkeeping).
func Create(size int, currentSeqNumber seq.Value) *RRB {
	if size <= 0 {
		panic("rrb: size must be positive")
	}
	return &RRB{
		buf:          make([]byte, size),
		n:            seq.Size(size),
		lastConsumed: currentSeqNumber,
	}
}

// Destroy releases the RRB's backing storage. After Destroy the RRB must
// not be reused.
func (r *RRB) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
	r.blocks = nil
}

// Size returns the RRB's fixed capacity in bytes.
func (r *RRB) Size() int {
	return int(r.n)
}

// ConsumableBytes returns the number of contiguous bytes ready for Pop.
func (r *RRB) ConsumableBytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.consumable)
}

// LastConsumedSeqNumber returns the sequence number of the last byte
// already delivered to the application.
func (r *RRB) LastConsumedSeqNumber() seq.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastConsumed
}

// inWindow reports whether s falls in the currently acceptable half-open
// range (lastConsumed, lastConsumed+N], i.e. the closed range
// [lastConsumed+1, lastConsumed+N].
func (r *RRB) inWindow(s seq.Value) bool {
	return seq.InWindowInclusive(s, r.lastConsumed.Add(1), r.n-1)
}

// Append records an arriving segment's payload. It returns the number of
// bytes accepted: 0 if the segment's starting sequence number falls
// outside the window (last_consumed, last_consumed+N], otherwise
// len(payload) (possibly truncated to fit within the window).
//
// Duplicate arrivals overwrite the same ring slots with (identical)
// payload, so Append is idempotent under retransmission.
func (r *RRB) Append(s seq.Value, payload []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(payload) == 0 {
		return 0
	}
	if !r.inWindow(s) {
		return 0
	}

	l := len(payload)
	// Truncate so the accepted range never exceeds the window's upper bound.
	maxLen := int(r.n) - int(seq.Diff(s, r.lastConsumed)) + 1
	if l > maxLen {
		l = maxLen
	}
	if l <= 0 {
		return 0
	}
	payload = payload[:l]

	// Bytes already inside the consumable region were received before:
	// only the part past that region gets a block entry.
	start, size := s, seq.Size(l)
	if off := seq.Diff(s, r.lastConsumed.Add(1)); off < r.consumable {
		if off+size <= r.consumable {
			size = 0
		} else {
			size = off + size - r.consumable
			start = r.lastConsumed.Add(r.consumable + 1)
		}
	}
	if size > 0 {
		r.blockListInsert(start, size)
		r.joinBlocks()
	}
	r.copyIn(s, payload)
	return l
}

// copyIn writes payload into the ring at the physical offsets
// corresponding to sequence numbers [s, s+len(payload)), wrapping at N.
func (r *RRB) copyIn(s seq.Value, payload []byte) {
	off := int(uint32(s) % uint32(r.n))
	n := copy(r.buf[off:], payload)
	if n < len(payload) {
		copy(r.buf, payload[n:])
	}
}

// copyOut reads n bytes starting at sequence number s out of the ring,
// wrapping at N, into dst.
func (r *RRB) copyOut(dst []byte, s seq.Value, n int) {
	off := int(uint32(s) % uint32(r.n))
	m := copy(dst, r.buf[off:])
	if m < n {
		copy(dst[m:], r.buf[:n-m])
	}
}

// blockListInsert inserts a (seqNum,size) run into the sorted block list,
// merging with an adjacent block on either side when contiguous. This
// mirrors the left-extend / right-extend / insert-before cases used by
// the reference block-list algorithm.
func (r *RRB) blockListInsert(s seq.Value, size seq.Size) {
	// Case 0: empty list.
	if r.blocks == nil {
		r.blocks = &block{seqNum: s, size: size}
		return
	}

	var prev *block
	for cur := r.blocks; cur != nil; cur = cur.next {
		// Left-extend: cur ends exactly where s begins -> absorb into cur.
		if cur.seqNum.Add(cur.size) == s {
			cur.size += size
			// Check whether cur now touches the following block too.
			if cur.next != nil && cur.seqNum.Add(cur.size) == cur.next.seqNum {
				cur.size += cur.next.size
				cur.next = cur.next.next
			}
			return
		}
		// Right-extend: s+size lands exactly at cur's start -> prepend.
		if s.Add(size) == cur.seqNum {
			cur.seqNum = s
			cur.size += size
			if prev != nil && prev.seqNum.Add(prev.size) == cur.seqNum {
				prev.size += cur.size
				prev.next = cur.next
			}
			return
		}
		// Already covered by an existing block (duplicate arrival).
		if s.GreaterThanEq(cur.seqNum) && seq.Diff(s.Add(size), cur.seqNum) <= cur.size {
			return
		}
		if s.LessThan(cur.seqNum) {
			nb := &block{seqNum: s, size: size, next: cur}
			if prev == nil {
				r.blocks = nb
			} else {
				prev.next = nb
			}
			return
		}
		prev = cur
	}
	// Insert at end.
	prev.next = &block{seqNum: s, size: size}
}

// joinBlocks absorbs the head of the block list into consumable_bytes
// while it is contiguous with last_consumed, repeating until the head is
// no longer adjacent or the list is empty.
func (r *RRB) joinBlocks() {
	for r.blocks != nil {
		expected := r.lastConsumed.Add(r.consumable + 1)
		if r.blocks.seqNum != expected {
			return
		}
		r.consumable += r.blocks.size
		r.blocks = r.blocks.next
	}
}

// Pop delivers up to len(out) contiguous bytes to the caller, advancing
// last_consumed_seq_number by the amount delivered, and returns the
// number of bytes written into out.
func (r *RRB) Pop(out []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(out)
	if seq.Size(n) > r.consumable {
		n = int(r.consumable)
	}
	if n == 0 {
		return 0
	}
	r.copyOut(out[:n], r.lastConsumed.Add(1), n)
	r.lastConsumed = r.lastConsumed.Add(seq.Size(n))
	r.consumable -= seq.Size(n)
	return n
}
