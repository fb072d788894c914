// Package ringbuf provides a fixed-capacity FIFO byte buffer used by the
// relay engine so that no connection's copy buffer can grow memory usage
// past a configured bound.
package ringbuf

import "fmt"

// Buffer is a fixed-capacity byte queue. Unlike bytes.Buffer it never grows:
// Write fails once the buffer is full, and callers are expected to drain via
// Readable/Advance before writing more. Buffer is not safe for concurrent use.
type Buffer struct {
	data []byte
	// start is the offset of the first unread byte; end is one past the last
	// written byte. Both advance monotonically and are folded modulo cap
	// only through the slice operations below — no wraparound indexing is
	// needed because the relay always fully drains before refilling.
	start, end int
}

// New allocates a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of unread bytes currently stored.
func (b *Buffer) Len() int {
	return b.end - b.start
}

// Full reports whether the buffer has no room left for further writes.
func (b *Buffer) Full() bool {
	return b.end == len(b.data)
}

// Empty reports whether there is nothing left to read.
func (b *Buffer) Empty() bool {
	return b.start == b.end
}

// Readable returns the slice of currently unread bytes. The slice is only
// valid until the next call to Advance, Reset, or Writable.
func (b *Buffer) Readable() []byte {
	return b.data[b.start:b.end]
}

// Writable returns the slice of free space available for a single write.
// Space already freed by AdvanceRead at the front of the buffer is reclaimed
// by Reset, not by Writable; AdvanceRead calls Reset itself once Len
// reaches 0.
func (b *Buffer) Writable() []byte {
	return b.data[b.end:]
}

// AdvanceRead marks n bytes as consumed from the front of the buffer.
func (b *Buffer) AdvanceRead(n int) {
	if n < 0 || b.start+n > b.end {
		panic(fmt.Sprintf("ringbuf: AdvanceRead(%d) out of range [%d,%d]", n, b.start, b.end))
	}
	b.start += n
	if b.start == b.end {
		b.Reset()
	}
}

// AdvanceWrite marks n bytes as having been written into the space returned
// by the most recent Writable call.
func (b *Buffer) AdvanceWrite(n int) {
	if n < 0 || b.end+n > len(b.data) {
		panic(fmt.Sprintf("ringbuf: AdvanceWrite(%d) would overflow capacity %d", n, len(b.data)))
	}
	b.end += n
}

// Reset drops all buffered content and reclaims the full capacity for
// writing. Called automatically once a full drain empties the buffer.
func (b *Buffer) Reset() {
	b.start, b.end = 0, 0
}

// Write appends p to the buffer, failing if there isn't enough room. It is a
// convenience wrapper over Writable/AdvanceWrite for callers that don't need
// to avoid the copy.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > len(b.Writable()) {
		return 0, fmt.Errorf("ringbuf: write of %d bytes exceeds remaining capacity %d", len(p), len(b.Writable()))
	}
	n := copy(b.Writable(), p)
	b.AdvanceWrite(n)
	return n, nil
}
