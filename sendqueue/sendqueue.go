// Package sendqueue implements the send-side retransmission queue: a FIFO
// of in-flight segment descriptors that borrow their payload from the
// socket's own send buffer rather than copying it.
package sendqueue

import (
	"sync"

	"github.com/microtcp/microtcp/seq"
)

// node is one in-flight segment's bookkeeping entry. Buffer is a borrowed
// slice into the caller's send buffer; the queue never owns or copies it.
type node struct {
	seqNum seq.Value
	size   seq.Size
	buffer []byte
	next   *node
}

// Queue is a FIFO of in-flight segments awaiting cumulative
// acknowledgement, ordered by strictly increasing sequence number.
type Queue struct {
	mu             sync.Mutex
	front, rear    *node
	storedSegments int
	storedBytes    seq.Size
}

// New returns an empty send queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a new in-flight segment descriptor. buffer is borrowed,
// not copied: the caller must keep it alive until the node is dequeued.
func (q *Queue) Enqueue(sequence seq.Value, size seq.Size, buffer []byte) {
	n := &node{seqNum: sequence, size: size, buffer: buffer}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.front == nil {
		q.front = n
		q.rear = n
	} else {
		q.rear.next = n
		q.rear = n
	}
	q.storedSegments++
	q.storedBytes += size
}

// Dequeue removes every prefix node whose seqNum+size <= ack (i.e. every
// node fully acknowledged by a cumulative ACK up to ack), and returns the
// count of nodes removed. If ack does not match the end of any node
// exactly, the queue is left unchanged and 0 is returned: this is the
// protocol de-synchronization signal described by the wire protocol.
func (q *Queue) Dequeue(ack seq.Value) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.front == nil {
		return 0
	}

	found := false
	for cur := q.front; cur != nil; cur = cur.next {
		if cur.seqNum.Add(cur.size) == ack {
			found = true
			break
		}
	}
	if !found {
		return 0
	}

	count := 0
	for {
		end := q.front.seqNum.Add(q.front.size)
		q.storedSegments--
		q.storedBytes -= q.front.size
		q.front = q.front.next
		if q.front == nil {
			q.rear = nil
		}
		count++
		if end == ack {
			break
		}
	}
	return count
}

// Front returns the oldest in-flight segment's sequence number, size, and
// borrowed buffer, plus ok=false if the queue is empty.
func (q *Queue) Front() (sequence seq.Value, size seq.Size, buffer []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.front == nil {
		return 0, 0, nil, false
	}
	return q.front.seqNum, q.front.size, q.front.buffer, true
}

// IsEmpty reports whether the queue holds no in-flight segments.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.front == nil
}

// StoredSegments returns the number of in-flight segments currently queued.
func (q *Queue) StoredSegments() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.storedSegments
}

// StoredBytes returns the total number of in-flight payload bytes queued.
func (q *Queue) StoredBytes() seq.Size {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.storedBytes
}
