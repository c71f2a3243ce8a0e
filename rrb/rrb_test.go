package rrb

import (
	"testing"

	"github.com/microtcp/microtcp/seq"
)

func TestAppendPopInOrder(t *testing.T) {
	r := Create(16, 99)
	n := r.Append(100, []byte("abcd"))
	if n != 4 {
		t.Fatalf("Append = %d, want 4", n)
	}
	if r.ConsumableBytes() != 4 {
		t.Fatalf("ConsumableBytes = %d, want 4", r.ConsumableBytes())
	}
	out := make([]byte, 4)
	got := r.Pop(out)
	if got != 4 || string(out) != "abcd" {
		t.Fatalf("Pop = %d %q, want 4 abcd", got, out)
	}
}

func TestAppendOutOfWindowRejected(t *testing.T) {
	r := Create(16, 99)
	if n := r.Append(200, []byte("x")); n != 0 {
		t.Fatalf("out-of-window Append = %d, want 0", n)
	}
	if n := r.Append(50, []byte("x")); n != 0 {
		t.Fatalf("stale Append = %d, want 0", n)
	}
}

func TestAppendOutOfOrderThenJoin(t *testing.T) {
	r := Create(16, 99)
	// Arrives out of order: bytes at 104..107 before 100..103.
	r.Append(104, []byte("EFGH"))
	if r.ConsumableBytes() != 0 {
		t.Fatalf("ConsumableBytes before join = %d, want 0", r.ConsumableBytes())
	}
	r.Append(100, []byte("ABCD"))
	if r.ConsumableBytes() != 8 {
		t.Fatalf("ConsumableBytes after join = %d, want 8", r.ConsumableBytes())
	}
	out := make([]byte, 8)
	r.Pop(out)
	if string(out) != "ABCDEFGH" {
		t.Fatalf("Pop = %q, want ABCDEFGH", out)
	}
}

func TestAppendIdempotentOnDuplicate(t *testing.T) {
	r := Create(16, 99)
	r.Append(100, []byte("abcd"))
	n := r.Append(100, []byte("abcd"))
	if n != 4 {
		t.Fatalf("duplicate Append = %d, want 4", n)
	}
	if r.ConsumableBytes() != 4 {
		t.Fatalf("ConsumableBytes after duplicate = %d, want 4", r.ConsumableBytes())
	}
}

// TestWraparoundScenario reproduces the concrete example: N=16,
// last_consumed=2^32-5, appending (2^32-4,4B), (2^32,4B),
// (2^32-8, rejected, out of window), then (2^32+4,4B), leaving
// consumable=12 and the block list empty.
func TestWraparoundScenario(t *testing.T) {
	lastConsumed := seq.Value(^uint32(0) - 4) // 2^32-5
	r := Create(16, lastConsumed)

	n := r.Append(seq.Value(^uint32(0)-3), []byte{1, 2, 3, 4}) // 2^32-4
	if n != 4 {
		t.Fatalf("first Append = %d, want 4", n)
	}
	n = r.Append(0, []byte{5, 6, 7, 8}) // 2^32 wraps to 0
	if n != 4 {
		t.Fatalf("second Append = %d, want 4", n)
	}
	n = r.Append(seq.Value(^uint32(0)-7), []byte{9, 9, 9, 9}) // 2^32-8, stale
	if n != 0 {
		t.Fatalf("stale Append = %d, want 0", n)
	}
	n = r.Append(4, []byte{9, 10, 11, 12}) // 2^32+4 wraps to 4
	if n != 4 {
		t.Fatalf("fourth Append = %d, want 4", n)
	}

	if r.ConsumableBytes() != 12 {
		t.Fatalf("ConsumableBytes = %d, want 12", r.ConsumableBytes())
	}
	if r.blocks != nil {
		t.Fatalf("expected empty block list, got one starting at %v", r.blocks.seqNum)
	}
}

func TestPopNeverExceedsConsumable(t *testing.T) {
	r := Create(16, 99)
	r.Append(100, []byte("ab"))
	out := make([]byte, 16)
	got := r.Pop(out)
	if got != 2 {
		t.Fatalf("Pop = %d, want 2", got)
	}
}
