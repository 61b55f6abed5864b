package client

import (
	"github.com/indigo-web/flux/client/chunk"
	"github.com/indigo-web/flux/client/clienterr"
)

// Sink is the subscriber-owned write end of a StreamedResponse's body
// (§4.C). The handler calls Emit for each delivered non-empty chunk,
// Complete once on a clean end-of-body, or Fail once on error; Complete
// and Fail are mutually exclusive and each terminal.
type Sink interface {
	// CurrentDemand reports how many additional chunks the sink is
	// currently willing to accept. The handler consults it after every
	// delivery to decide whether to request another read.
	CurrentDemand() int
	// Emit delivers one non-empty chunk, transferring ownership: the sink
	// must call c.Release() exactly once, whenever it is done with the
	// bytes.
	Emit(c chunk.Chunk)
	// Complete signals a clean end-of-body.
	Complete()
	// Fail signals the body ended in error, and no more chunks will
	// follow.
	Fail(err error)
}

// Subscription is returned by StreamedResponse.Subscribe. Request grants
// more demand and asks the handler to read that many further times;
// Cancel force-disposes the response and stops delivery immediately.
type Subscription struct {
	h *handler
}

// Request asks the handler to issue n more reads from the transport, one
// per unit of demand (§4.E: "every increment of demand issues one read
// request").
func (s Subscription) Request(n int) {
	if n <= 0 {
		return
	}

	s.h.request(n)
}

// Cancel force-disposes the underlying connection and stops delivering
// chunks. Safe to call more than once.
func (s Subscription) Cancel() {
	s.h.cancel()
}

// collectSink is the internal Sink implementation backing
// StreamedResponse.JSON and Client.Execute's buffering path: unlimited
// demand, accumulate everything, signal done on a channel. If max is
// exceeded, the subscription is cancelled instead of accepting further
// chunks it would just have to discard.
type collectSink struct {
	buf  []byte
	err  error
	done chan struct{}
	max  int64
	sub  Subscription
}

func newCollectSink(maxLen int64) *collectSink {
	return &collectSink{done: make(chan struct{}), max: maxLen}
}

func (s *collectSink) CurrentDemand() int {
	if s.err != nil {
		return 0
	}

	return 1 << 30
}

func (s *collectSink) Emit(c chunk.Chunk) {
	if s.err == nil {
		if s.max >= 0 && int64(len(s.buf)+c.Len()) > s.max {
			s.err = clienterr.New(clienterr.MaxContentLengthExceeded, "buffered response exceeded max_content_length")
			c.Release()
			s.sub.Cancel()
			close(s.done)
			return
		}

		s.buf = append(s.buf, c.Bytes()...)
	}

	c.Release()
}

func (s *collectSink) Complete() {
	if s.err != nil {
		// done was already closed when max was exceeded.
		return
	}

	close(s.done)
}

func (s *collectSink) Fail(err error) {
	if s.err != nil {
		return
	}

	s.err = err
	close(s.done)
}

// collectAll drains r's entire body through a collectSink with no length
// bound, used by StreamedResponse.JSON.
func collectAll(r StreamedResponse) ([]byte, error) {
	sink := newCollectSink(-1)
	sink.sub = Subscription{h: r.handler}
	r.Subscribe(sink)
	<-sink.done

	return sink.buf, sink.err
}

// collectAllBounded drains r's entire body with a max-content-length bound,
// used by Client.Execute.
func collectAllBounded(r StreamedResponse, max int64) ([]byte, error) {
	sink := newCollectSink(max)
	sink.sub = Subscription{h: r.handler}
	r.Subscribe(sink)
	<-sink.done

	return sink.buf, sink.err
}
