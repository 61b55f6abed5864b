// Package chunk implements the reference-counted byte views handed
// between the transport, the streaming response handler and the
// subscriber. A Chunk is a single-owner handoff: whoever holds it is on
// the hook for exactly one Release call, mirroring the object-pool
// discipline the teacher applies to connections and parse buffers, just
// with an explicit refcount instead of a bare free-list slot, because
// chunks cross goroutine and component boundaries rather than staying
// inside one call stack.
package chunk

import "sync/atomic"

// Chunk is an immutable view over a pooled byte region. The zero value is
// the terminal chunk: it carries no bytes and does not need releasing.
type Chunk struct {
	buf *buffer
}

type buffer struct {
	data []byte
	refs atomic.Int32
	pool *Pool
}

// Terminal returns the sentinel chunk signalling end-of-body. IsTerminal
// reports true for it; Release on it is a no-op.
func Terminal() Chunk {
	return Chunk{}
}

// IsTerminal reports whether c is the end-of-body sentinel.
func (c Chunk) IsTerminal() bool {
	return c.buf == nil
}

// Bytes returns the chunk's payload. Never call this after Release.
func (c Chunk) Bytes() []byte {
	if c.buf == nil {
		return nil
	}

	return c.buf.data
}

// Len returns len(c.Bytes()).
func (c Chunk) Len() int {
	if c.buf == nil {
		return 0
	}

	return len(c.buf.data)
}

// Release drops the one owning reference to c's backing buffer. Calling it
// more than once on the same Chunk value is a bug in the caller (the
// buffer would be returned to the pool twice); calling it on a terminal
// chunk is always safe and a no-op, so callers never need to branch on
// IsTerminal before releasing.
func (c Chunk) Release() {
	if c.buf == nil {
		return
	}

	if c.buf.refs.Add(-1) == 0 {
		c.buf.pool.put(c.buf)
	}
}
