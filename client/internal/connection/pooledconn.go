package connection

import (
	"github.com/indigo-web/flux/client/internal/pipeline"
	"github.com/indigo-web/flux/transport"
)

// Key identifies a set of interchangeable connections: same scheme and
// host. The TLS configuration is not part of the key: requests to the same
// scheme and host share pooled connections whatever their TLS context.
type Key struct {
	Scheme string
	Host   string
}

// Pooled wraps a leased transport.Client with the per-connection state the
// transport adapter contract requires: a removable-stage pipeline and the
// auto-read toggle (spec §4.G).
type Pooled struct {
	transport.Client
	Key      Key
	Pipeline *pipeline.Pipeline
	autoRead bool
}

func newPooled(client transport.Client, key Key) *Pooled {
	return &Pooled{
		Client:   client,
		Key:      key,
		Pipeline: pipeline.New(),
		autoRead: true,
	}
}

// SetAutoRead toggles the connection's automatic-read behavior. The
// streaming response handler disables it permanently once a response head
// arrives (§4.E) and it is never re-enabled for that response's lifetime.
func (p *Pooled) SetAutoRead(v bool) {
	p.autoRead = v
}

func (p *Pooled) AutoRead() bool {
	return p.autoRead
}

// reset restores a connection to a pristine, poolable state before it is
// handed to a future request.
func (p *Pooled) reset() {
	p.Pipeline = pipeline.New()
	p.autoRead = true
}
