package dummy

import (
	"io"
	"net"
	"time"

	"github.com/indigo-web/flux/transport"
)

var _ transport.Client = new(Client)

// Client is an in-memory transport.Client double: it replays a fixed queue
// of read pieces, in order, then reports io.EOF, unless put into blocking
// mode, in which case a drained queue blocks the reader until Close is
// called, the same way an in-flight net.Conn.Read unblocks on Close. It
// also records everything written to it.
type Client struct {
	closed     bool
	blocking   bool
	journaling bool
	pending    []byte
	written    []byte
	queue      [][]byte
	closeCh    chan struct{}
	timeout    time.Duration
}

func NewMockClient(data ...[]byte) *Client {
	return &Client{
		queue:      data,
		journaling: true,
		closeCh:    make(chan struct{}),
	}
}

// Block puts c into blocking mode: once the queue is drained, Read blocks
// until Close is called instead of returning io.EOF. Used to simulate a
// stalled connection for read-timeout scenarios.
func (c *Client) Block() *Client {
	c.blocking = true
	return c
}

// Enqueue appends another piece to be returned by a future Read, useful for
// feeding data to a client already blocked in Read.
func (c *Client) Enqueue(piece []byte) *Client {
	c.queue = append(c.queue, piece)
	return c
}

func (c *Client) Read() (data []byte, err error) {
	if len(c.pending) > 0 {
		data, c.pending = c.pending, nil
		return data, nil
	}

	if len(c.queue) > 0 {
		piece := c.queue[0]
		c.queue = c.queue[1:]
		return piece, nil
	}

	if c.closed {
		return nil, io.EOF
	}

	if c.blocking {
		<-c.closeCh
		return nil, io.EOF
	}

	return nil, io.EOF
}

func (c *Client) Pushback(takeback []byte) {
	c.pending = takeback
}

func (c *Client) Write(p []byte) (int, error) {
	if c.journaling {
		c.written = append(c.written, p...)
	}

	return len(p), nil
}

func (c *Client) Conn() net.Conn {
	return new(Conn).Nop()
}

func (*Client) Remote() net.Addr {
	return nil
}

func (c *Client) Close() error {
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}

	return nil
}

func (c *Client) Journaling(flag bool) *Client {
	c.journaling = flag
	return c
}

func (c *Client) Written() string {
	if !c.journaling {
		panic("mock client: cannot access written data: journaling is disabled!")
	}

	return string(c.written)
}

// SetTimeout records the requested timeout for inspection via Timeout; the
// mock has no real deadline to apply it to.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Timeout returns whatever duration was last passed to SetTimeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
