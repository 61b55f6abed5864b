package client

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/indigo-web/flux/client/chunk"
	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/client/internal/body"
	"github.com/indigo-web/flux/client/internal/connection"
	"github.com/indigo-web/flux/client/internal/decompress"
	"github.com/indigo-web/flux/client/internal/parser/http1"
	"github.com/indigo-web/flux/http/proto"
	"github.com/indigo-web/flux/http/status"
	"github.com/indigo-web/flux/kv"
	"github.com/indigo-web/utils/buffer"
)

// hState is the streaming response handler's state machine (§4.E).
type hState uint8

const (
	hAwaitHead hState = iota
	hBufferingPreSubscribe
	hStreaming
	hDrained
	hErrored
)

const (
	responseHandlerStage = "response-handler"
	decompressStage      = "decompress"
)

// handler owns every piece of mutable state for one response's lifetime.
// All of it is touched exclusively from the single goroutine running run,
// reached only through tasks — the Go rendering of the single-threaded
// cooperative execution model the spec describes: rather than one shared
// event-loop thread serializing callbacks the way Netty would, each
// execution gets its own goroutine, and every cross-goroutine signal
// (Subscribe, Request, Cancel, a completed socket read) arrives as a
// posted closure instead of a direct field mutation.
type handler struct {
	tasks    chan func()
	closedCh chan struct{}

	conn    *connection.Pooled
	manager *connection.Manager

	parser  *http1.Parser
	decoder body.Decoder

	pool     *chunk.Pool
	maxChunk int

	maxContentLength  int64
	decompressEnabled bool

	state   hState
	pending []chunk.Chunk
	sink    Sink

	deliverHead func(StreamedResponse, error)
	respHead    ResponseHead

	// abandonGrace bounds how long a never-subscribed response is kept
	// around, counted from the moment its head is delivered, waiting for a Subscribe that may never come
	// (spec §3's StreamedResponse invariant, §8 scenario f). Reuses the
	// request's own read timeout rather than introducing a second timeout
	// knob nothing else in RequestConfig exposes.
	abandonGrace time.Duration
	abandonTimer *time.Timer
}

// Process implements pipeline.Stage as a no-op passthrough. Registering
// handler under the well-known "response-handler" name lets dispose find
// and remove it by name (§4.D step 2); the actual byte processing happens
// outside the pipeline, in onRead, since the handler is the pipeline's
// terminal consumer rather than a transform.
func (h *handler) Process(data []byte) ([]byte, error) {
	return data, nil
}

func newHandler(conn *connection.Pooled, manager *connection.Manager, pool *chunk.Pool, maxChunk int, maxContentLength int64, decompressEnabled bool, abandonGrace time.Duration) *handler {
	return &handler{
		tasks:             make(chan func(), 8),
		closedCh:          make(chan struct{}),
		conn:              conn,
		manager:           manager,
		pool:              pool,
		maxChunk:          maxChunk,
		maxContentLength:  maxContentLength,
		decompressEnabled: decompressEnabled,
		abandonGrace:      abandonGrace,
		parser: http1.NewParser(
			*buffer.NewBuffer[byte](0, 512),
			*buffer.NewBuffer[byte](0, 4096),
		),
	}
}

// run drives the handler until the response reaches a terminal state. It
// must be started with `go h.run(cont)`; cont is called exactly once, from
// this goroutine, the moment the response head is fully parsed (or parsing
// fails). Everything after that point — buffering, streaming, disposal —
// continues to run on this same goroutine for as long as it takes.
func (h *handler) run(cont func(StreamedResponse, error)) {
	h.deliverHead = cont
	h.parser.Init(kv.New())

	if h.conn.AutoRead() {
		h.scheduleRead()
	}

	for {
		select {
		case task := <-h.tasks:
			task()
		case <-h.closedCh:
			return
		}

		if h.state == hDrained || h.state == hErrored {
			return
		}
	}
}

// post delivers fn to the owning goroutine, or drops it silently if the
// handler has already reached a terminal state — a read result or a late
// Subscribe/Request/Cancel arriving after disposal has nothing left to
// act on.
func (h *handler) post(fn func()) {
	select {
	case h.tasks <- fn:
	case <-h.closedCh:
	}
}

// scheduleRead spawns a one-shot goroutine to perform exactly one
// transport read and post its result back. Blocking Read calls live on
// their own goroutine specifically so a Close() elsewhere can unblock
// them without the owning goroutine needing to be free to notice.
func (h *handler) scheduleRead() {
	go func() {
		data, err := h.conn.Read()
		h.post(func() { h.onRead(data, err) })
	}()
}

func (h *handler) onRead(data []byte, err error) {
	if err != nil {
		if errors.Is(err, io.EOF) && h.state != hAwaitHead {
			if pd, ok := h.decoder.(*body.PlainDecoder); ok && pd.Unbounded() {
				pd.Close()
				h.deliver(chunk.Terminal())
				return
			}
		}

		h.fail(classifyReadErr(err))
		return
	}

	if h.state == hAwaitHead {
		h.feedHead(data)
		return
	}

	processed, perr := h.conn.Pipeline.Process(data)
	if perr != nil {
		h.fail(perr)
		return
	}

	h.feedBody(processed)
}

func (h *handler) feedHead(data []byte) {
	done, rest, err := h.parser.Parse(data)
	if err != nil {
		h.fail(err)
		return
	}

	if !done {
		// still awaiting a full head: keep reading automatically until the
		// flag is turned off below, per the auto_read toggle contract (§4.G).
		if h.conn.AutoRead() {
			h.scheduleRead()
		}
		return
	}

	raw := h.parser.Head()
	h.respHead = ResponseHead{
		Protocol: raw.Protocol,
		Code:     raw.Code,
		Status:   raw.Status,
		Headers:  raw.Headers,
	}
	stripInformationalContentLength(&h.respHead)

	// disabled for the rest of this response's lifetime, never re-enabled
	// (§4.E): every further byte is read on demand, not eagerly.
	h.conn.SetAutoRead(false)

	h.decoder = h.buildDecoder(h.respHead)
	h.installDecompressIfNeeded()

	h.state = hBufferingPreSubscribe
	h.armAbandonGuard()
	h.deliverHead(StreamedResponse{Head: h.respHead, handler: h, maxContentLength: h.maxContentLength}, nil)

	if len(rest) > 0 {
		processed, perr := h.conn.Pipeline.Process(rest)
		if perr != nil {
			h.fail(perr)
			return
		}

		h.feedBody(processed)
	}
}

func (h *handler) buildDecoder(head ResponseHead) body.Decoder {
	if strings.EqualFold(head.Headers.Value("Transfer-Encoding"), "chunked") {
		return body.NewChunkedDecoder(uint32(h.maxChunk))
	}

	if (head.Code >= 100 && head.Code < 200) || head.Code == status.NoContent || head.Code == status.NotModified {
		return body.NewPlainDecoder(0)
	}

	cl, ok := head.Headers.Get("Content-Length")
	if !ok {
		return body.NewPlainDecoder(-1)
	}

	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return body.NewPlainDecoder(0)
	}

	return body.NewPlainDecoder(n)
}

func (h *handler) installDecompressIfNeeded() {
	if !h.decompressEnabled {
		return
	}

	enc := h.respHead.Headers.Value("Content-Encoding")
	if enc == "" {
		return
	}

	stage, ok := decompress.NewStage(strings.ToLower(strings.TrimSpace(enc)), h.maxChunk)
	if !ok {
		return
	}

	h.conn.Pipeline.Insert(decompressStage, stage)
}

func (h *handler) feedBody(data []byte) {
	pieces, _, done, err := h.decoder.Feed(data)
	if err != nil {
		h.fail(err)
		return
	}

	for _, piece := range pieces {
		for len(piece) > 0 {
			n := len(piece)
			if n > h.maxChunk {
				n = h.maxChunk
			}

			c := h.pool.Fill(piece[:n])
			piece = piece[n:]

			h.deliver(c)
			if h.state == hDrained || h.state == hErrored {
				return
			}
		}
	}

	if done {
		h.deliver(chunk.Terminal())
		return
	}

	if h.state == hStreaming && h.sink.CurrentDemand() > 0 {
		h.scheduleRead()
	}
	// in BufferingPreSubscribe no further read is scheduled: the
	// backpressure contract only reads on demand, and there is no
	// subscriber to have demand yet.
}

// deliver routes one produced chunk (or the terminal sentinel) according
// to the current state, per §4.C rule 2 and §4.E.
func (h *handler) deliver(c chunk.Chunk) {
	switch h.state {
	case hBufferingPreSubscribe:
		if c.IsTerminal() {
			h.pending = append(h.pending, c)
			return
		}

		if c.Len() == 0 {
			c.Release()
			return
		}

		h.pending = append(h.pending, c)
	case hStreaming:
		if c.IsTerminal() {
			h.completeStream()
			return
		}

		if c.Len() == 0 {
			c.Release()
			return
		}

		h.sink.Emit(c)

		if h.state == hStreaming && h.sink.CurrentDemand() > 0 {
			h.scheduleRead()
		}
	default:
		c.Release()
	}
}

// armAbandonGuard starts the timer that force-disposes a response nobody
// ever subscribed to, whether or not its body has been fully buffered (§8
// scenario f). Called once, when the head is delivered; disarmed by
// attach, discard, cancel and fail, whichever comes first.
func (h *handler) armAbandonGuard() {
	if h.abandonGrace <= 0 {
		return
	}

	h.abandonTimer = time.AfterFunc(h.abandonGrace, func() {
		h.post(h.abandon)
	})
}

func (h *handler) disarmAbandonGuard() {
	if h.abandonTimer != nil {
		h.abandonTimer.Stop()
	}
}

// abandon runs on the owning goroutine once the abandon guard fires. It is
// a no-op if a subscriber attached (or Discard/Cancel ran) in the meantime.
func (h *handler) abandon() {
	if h.state != hBufferingPreSubscribe {
		return
	}

	h.state = hDrained
	h.releasePending()
	h.disposeQuiet(h.forceDispose)
	h.finish()
}

// attach is posted from Subscribe (possibly from a different goroutine)
// and flushes any pre-subscription queue before switching to Streaming.
func (h *handler) attach(sink Sink) {
	h.post(func() {
		if h.state != hBufferingPreSubscribe {
			return
		}

		h.disarmAbandonGuard()
		h.sink = sink
		h.state = hStreaming

		pending := h.pending
		h.pending = nil

		for _, c := range pending {
			if c.IsTerminal() {
				h.completeStream()
				return
			}

			h.sink.Emit(c)
		}

		if h.state == hStreaming && h.sink.CurrentDemand() > 0 {
			h.scheduleRead()
		}
	})
}

// request is posted from Subscription.Request: every unit of demand
// issues exactly one read request to the transport (§4.E).
func (h *handler) request(n int) {
	h.post(func() {
		if h.state != hStreaming {
			return
		}

		for i := 0; i < n; i++ {
			h.scheduleRead()
		}
	})
}

func (h *handler) completeStream() {
	h.state = hDrained
	h.disposeQuiet(h.dispose)
	h.sink.Complete()
	h.finish()
}

// discard is posted from StreamedResponse.Discard: force-dispose without
// ever attaching a subscriber, releasing any buffered chunks.
func (h *handler) discard() {
	h.post(func() {
		if h.state == hDrained || h.state == hErrored {
			return
		}

		h.disarmAbandonGuard()
		h.state = hDrained
		h.releasePending()
		h.disposeQuiet(h.forceDispose)
		h.finish()
	})
}

// cancel is posted from Subscription.Cancel: force-dispose immediately,
// no Complete/Fail is delivered to the sink (§4.E, subscriber-initiated
// cancellation).
func (h *handler) cancel() {
	h.post(func() {
		if h.state == hDrained || h.state == hErrored {
			return
		}

		h.disarmAbandonGuard()
		h.state = hDrained
		h.releasePending()
		h.disposeQuiet(h.forceDispose)
		h.finish()
	})
}

func (h *handler) fail(err error) {
	if h.state == hDrained || h.state == hErrored {
		return
	}

	prevState := h.state
	h.state = hErrored
	h.disarmAbandonGuard()

	wrapped := decorate(err)
	if disposeErr := h.forceDispose(); disposeErr != nil {
		if ce, ok := wrapped.(*clienterr.Error); ok {
			wrapped = ce.WithSuppressed(disposeErr)
		}
	}

	h.releasePending()

	if prevState == hAwaitHead {
		h.deliverHead(StreamedResponse{}, wrapped)
	} else if h.sink != nil {
		h.sink.Fail(wrapped)
	}

	h.finish()
}

func (h *handler) releasePending() {
	for _, c := range h.pending {
		c.Release()
	}

	h.pending = nil
}

func (h *handler) disposeQuiet(fn func() error) {
	_ = fn()
}

// dispose returns the connection to the pool if it is still eligible for
// keep-alive, or force-disposes it otherwise (§4.D disposal contract).
func (h *handler) dispose() error {
	h.conn.Pipeline.Remove(responseHandlerStage)
	h.conn.Pipeline.Remove(decompressStage)

	if h.keepAliveEligible() {
		h.manager.Put(h.conn)
		return nil
	}

	return h.manager.Discard(h.conn)
}

// forceDispose always closes the connection, never returning it to the
// pool: used on error and cancellation, where the connection's framing
// state can no longer be trusted.
func (h *handler) forceDispose() error {
	h.conn.Pipeline.Remove(responseHandlerStage)
	h.conn.Pipeline.Remove(decompressStage)

	return h.manager.Discard(h.conn)
}

func (h *handler) keepAliveEligible() bool {
	if h.respHead.Protocol != proto.HTTP11 {
		return false
	}

	return !strings.EqualFold(h.respHead.Headers.Value("Connection"), "close")
}

func (h *handler) finish() {
	close(h.closedCh)
}

// classifyReadErr maps a transport-level read error onto the client's
// closed error taxonomy.
func classifyReadErr(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return clienterr.Wrap(clienterr.ReadTimeout, "no data received before the read timeout elapsed", err)
	}

	if errors.Is(err, io.EOF) {
		return clienterr.Wrap(clienterr.TransportClosed, "connection closed before the response was fully read", err)
	}

	return clienterr.Wrap(clienterr.TransportClosed, "transport read failed", err)
}

// decorate ensures err is a *clienterr.Error, wrapping bare errors (e.g.
// from a body.Decoder) as ProtocolError.
func decorate(err error) error {
	if _, ok := err.(*clienterr.Error); ok {
		return err
	}

	return clienterr.Wrap(clienterr.ProtocolError, "response processing failed", err)
}
