package protocol

import "sync/atomic"

// ByteQueue is a fixed-size circular buffer for staging received bytes.
// It is safe for exactly one producer (an interrupt handler or reader
// goroutine) and one consumer (the session loop) running concurrently.
// Neither side allocates.
type ByteQueue struct {
	buf   []byte
	mask  uint32
	read  atomic.Uint32 // owned by the consumer
	write atomic.Uint32 // owned by the producer
}

// NewByteQueue creates a queue holding at least capacity bytes.
// The capacity is rounded up to a power of two.
func NewByteQueue(capacity int) *ByteQueue {
	size := 1
	for size < capacity+1 {
		size <<= 1
	}
	return &ByteQueue{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}
}

// Write appends data and returns how many bytes fit. Producer side only.
func (q *ByteQueue) Write(data []byte) int {
	w := q.write.Load()
	r := q.read.Load()
	written := 0
	for _, b := range data {
		next := (w + 1) & q.mask
		if next == r {
			// Buffer full
			break
		}
		q.buf[w] = b
		w = next
		written++
	}
	q.write.Store(w)
	return written
}

// Read copies up to len(data) bytes out of the queue. Consumer side only.
func (q *ByteQueue) Read(data []byte) int {
	r := q.read.Load()
	w := q.write.Load()
	n := 0
	for n < len(data) && r != w {
		data[n] = q.buf[r]
		r = (r + 1) & q.mask
		n++
	}
	q.read.Store(r)
	return n
}

// Available returns the number of bytes waiting to be read
func (q *ByteQueue) Available() int {
	return int((q.write.Load() - q.read.Load()) & q.mask)
}

// Free returns the number of bytes that can still be written
func (q *ByteQueue) Free() int {
	return len(q.buf) - 1 - q.Available()
}

// IsEmpty returns true if the queue is empty
func (q *ByteQueue) IsEmpty() bool {
	return q.read.Load() == q.write.Load()
}

// Discard drops everything currently queued. Consumer side only.
func (q *ByteQueue) Discard() int {
	w := q.write.Load()
	n := int((w - q.read.Load()) & q.mask)
	q.read.Store(w)
	return n
}
