package transport

import (
	"net"
	"time"

	"github.com/indigo-web/flux/internal/timer"
)

// Client is the transport adapter contract every connection in a
// connection.Manager's pool satisfies: one buffered read primitive plus a
// one-slot pushback, framed so a streaming response handler can drive it
// with exactly one in-flight Read per scheduleRead call.
type Client interface {
	// Read performs one read cycle: it first drains anything handed back
	// through Pushback, then blocks on the underlying connection for at
	// most the client's configured timeout. Only ever called from a single
	// goroutine at a time per connection — the handler's scheduleRead
	// invariant — so the returned slice is safe to alias an internal
	// scratch buffer until the next call.
	Read() ([]byte, error)
	// Pushback hands data read past a logical boundary (e.g. bytes read
	// while awaiting a 100-continue interim response that turned out to
	// belong to the final response) back for the next Read to return
	// first.
	Pushback([]byte)
	Write([]byte) (int, error)
	Conn() net.Conn
	Remote() net.Addr
	Close() error
	// SetTimeout updates the read timeout applied to every future Read.
	// A connection taken from the pool for keep-alive reuse carries
	// whatever timeout it was dialed with; the acquiring request applies
	// its own configured read timeout via this method rather than
	// inheriting a stale one from whichever request dialed the connection
	// first.
	SetTimeout(time.Duration)
}

type client struct {
	conn    net.Conn
	buff    []byte
	pending []byte
	timeout time.Duration
}

func NewClient(conn net.Conn, timeout time.Duration, buff []byte) Client {
	return &client{
		buff:    buff,
		conn:    conn,
		timeout: timeout,
	}
}

// Read returns any pushed-back data first; otherwise it resets the read
// deadline to now+timeout and performs exactly one underlying Read.
func (c *client) Read() ([]byte, error) {
	if len(c.pending) > 0 {
		pending := c.pending
		c.pending = nil

		return pending, nil
	}

	if err := c.conn.SetReadDeadline(timer.Now().Add(c.timeout)); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buff)
	return c.buff[:n], err
}

// Pending returns data (if any) preserved via Pushback.
func (c *client) Pending() []byte {
	return c.pending
}

// Pushback preserves a chunk of data from previous read for the next read.
func (c *client) Pushback(b []byte) {
	c.pending = b
}

// Conn unwraps the underlying net.Conn.
func (c *client) Conn() net.Conn {
	return c.conn
}

// Write writes data into the underlying connection.
func (c *client) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

// Remote returns the remote address of the connection.
func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the connection.
func (c *client) Close() error {
	return c.conn.Close()
}

// SetTimeout replaces the duration applied to the read deadline on every
// future Read; it takes effect starting with the next call.
func (c *client) SetTimeout(d time.Duration) {
	c.timeout = d
}
