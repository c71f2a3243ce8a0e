package sendqueue

import "testing"

func TestEnqueueDequeueSingle(t *testing.T) {
	q := New()
	q.Enqueue(100, 10, []byte("0123456789"))
	if q.StoredSegments() != 1 || q.StoredBytes() != 10 {
		t.Fatalf("after enqueue: segments=%d bytes=%d", q.StoredSegments(), q.StoredBytes())
	}
	n := q.Dequeue(110)
	if n != 1 {
		t.Fatalf("Dequeue = %d, want 1", n)
	}
	if !q.IsEmpty() {
		t.Fatal("expected empty queue after full dequeue")
	}
}

func TestCumulativeDequeueRemovesPrefix(t *testing.T) {
	q := New()
	q.Enqueue(0, 10, nil)
	q.Enqueue(10, 10, nil)
	q.Enqueue(20, 10, nil)

	n := q.Dequeue(20) // acks first two segments
	if n != 2 {
		t.Fatalf("Dequeue(20) = %d, want 2", n)
	}
	if q.StoredSegments() != 1 {
		t.Fatalf("StoredSegments after partial dequeue = %d, want 1", q.StoredSegments())
	}
	seqNum, _, _, ok := q.Front()
	if !ok || seqNum != 20 {
		t.Fatalf("Front after partial dequeue = %v, ok=%v, want 20", seqNum, ok)
	}
}

func TestDequeueMismatchReturnsZero(t *testing.T) {
	q := New()
	q.Enqueue(0, 10, nil)
	q.Enqueue(10, 10, nil)

	n := q.Dequeue(15) // does not land on any node boundary
	if n != 0 {
		t.Fatalf("Dequeue(15) = %d, want 0 (desync signal)", n)
	}
	if q.StoredSegments() != 2 {
		t.Fatalf("queue should be unchanged on mismatch, got %d segments", q.StoredSegments())
	}
}

func TestDequeueOnEmptyQueueReturnsZero(t *testing.T) {
	q := New()
	if n := q.Dequeue(5); n != 0 {
		t.Fatalf("Dequeue on empty queue = %d, want 0", n)
	}
}

func TestFrontOnEmptyQueue(t *testing.T) {
	q := New()
	_, _, _, ok := q.Front()
	if ok {
		t.Fatal("Front on empty queue should report ok=false")
	}
}
