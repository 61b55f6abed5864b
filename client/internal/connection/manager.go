// Package connection is a bit smarter connection pool. It receives a
// request's (scheme, host) key and tries to find a free connection able to
// serve it, falling back to letting the caller dial a fresh one.
package connection

import (
	"sync"

	"github.com/indigo-web/flux/transport"
	"github.com/indigo-web/utils/pool"
)

// Manager is a per-Key connection pool: idle connections are kept in a
// free-list per (scheme, host), the same free-list discipline chunk.Pool
// uses for byte buffers. The pool itself is a cross-goroutine collaborator
// (spec §5): a mutex guards the map of per-key pools, but not Acquire and
// Release themselves, which pool.ObjectPool already makes safe for
// concurrent use. Pools are stored as pointers: ObjectPool.Acquire and
// Release both mutate the receiver's slice header, and that mutation has
// to land on the shared pool, not a copy pulled out of the map.
type Manager struct {
	mu    sync.Mutex
	pools map[Key]*pool.ObjectPool[*Pooled]
	size  int
}

// NewManager returns a Manager keeping at most queueSize idle connections
// per (scheme, host) key.
func NewManager(queueSize int) *Manager {
	return &Manager{
		pools: make(map[Key]*pool.ObjectPool[*Pooled]),
		size:  queueSize,
	}
}

// Acquire returns an idle connection for key, or nil if none is available.
// A nil result means the caller must dial a fresh transport.Client and wrap
// it with Wrap.
func (m *Manager) Acquire(key Key) *Pooled {
	m.mu.Lock()
	p, ok := m.pools[key]
	m.mu.Unlock()

	if !ok {
		return nil
	}

	return p.Acquire()
}

// Wrap adapts a freshly dialed transport.Client into a Pooled connection
// ready for use by a request.
func (m *Manager) Wrap(client transport.Client, key Key) *Pooled {
	return newPooled(client, key)
}

// Put returns conn to its key's pool for a future request to Acquire, the
// keep-alive-eligible branch of the disposal contract (spec §4.D).
func (m *Manager) Put(conn *Pooled) {
	conn.reset()

	m.mu.Lock()
	p, ok := m.pools[conn.Key]
	if !ok {
		fresh := pool.NewObjectPool[*Pooled](m.size)
		p = &fresh
		m.pools[conn.Key] = p
	}
	m.mu.Unlock()

	p.Release(conn)
}

// Discard closes conn without returning it to the pool, the force-dispose
// branch of the disposal contract.
func (m *Manager) Discard(conn *Pooled) error {
	return conn.Close()
}

// CloseIdle closes every connection currently sitting idle in a per-key
// pool. ObjectPool exposes no iteration, so each pool is drained by
// repeated Acquire until it reports nothing left.
func (m *Manager) CloseIdle() {
	m.mu.Lock()
	pools := make([]*pool.ObjectPool[*Pooled], 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	for _, p := range pools {
		for {
			conn := p.Acquire()
			if conn == nil {
				break
			}

			_ = conn.Close()
		}
	}
}
