package chunk

import "github.com/indigo-web/utils/pool"

// Pool hands out fixed-capacity Chunks and recycles their backing arrays
// once every outstanding reference has been released, the same free-list
// discipline the teacher uses for connections (client/internal/connection)
// and parse buffers, generalized to carry a refcount instead of handing
// back ownership implicitly.
type Pool struct {
	free     pool.ObjectPool[*buffer]
	maxChunk int
}

// New returns a Pool producing chunks of at most maxChunk bytes, with
// queueSize free buffers kept around between requests.
func New(maxChunk, queueSize int) *Pool {
	return &Pool{
		free:     pool.NewObjectPool[*buffer](queueSize),
		maxChunk: maxChunk,
	}
}

// MaxChunk returns the configured ceiling on a single chunk's length.
func (p *Pool) MaxChunk() int {
	return p.maxChunk
}

// Fill copies data into a freshly acquired (or recycled) buffer and
// returns ownership of it as a Chunk with one live reference. len(data)
// must not exceed p.MaxChunk(); callers are expected to have already split
// oversized reads before calling Fill.
func (p *Pool) Fill(data []byte) Chunk {
	buf := p.free.Acquire()
	if buf == nil {
		buf = &buffer{pool: p}
	}

	if cap(buf.data) < len(data) {
		buf.data = make([]byte, len(data))
	}

	buf.data = buf.data[:len(data)]
	copy(buf.data, data)
	buf.refs.Store(1)

	return Chunk{buf: buf}
}

func (p *Pool) put(b *buffer) {
	b.data = b.data[:0]
	p.free.Release(b)
}
