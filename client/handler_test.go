package client

import (
	"sync"
	"testing"
	"time"

	"github.com/indigo-web/flux/client/chunk"
	"github.com/indigo-web/flux/client/internal/connection"
	"github.com/indigo-web/flux/transport/dummy"
	"github.com/stretchr/testify/require"
)

// recordingSink is a test Sink with unlimited demand that records every
// chunk delivered to it, in order.
type recordingSink struct {
	mu        sync.Mutex
	body      []byte
	completed bool
	failed    error
	done      chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) CurrentDemand() int {
	return 1 << 20
}

func (s *recordingSink) Emit(c chunk.Chunk) {
	s.mu.Lock()
	s.body = append(s.body, c.Bytes()...)
	s.mu.Unlock()
	c.Release()
}

func (s *recordingSink) Complete() {
	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSink) Fail(err error) {
	s.mu.Lock()
	s.failed = err
	s.mu.Unlock()
	close(s.done)
}

// onePieceSink requests exactly one chunk at a time, exercising the
// demand-driven backpressure contract.
type onePieceSink struct {
	mu   sync.Mutex
	body []byte
	sub  Subscription
	done chan struct{}
}

func newOnePieceSink() *onePieceSink {
	return &onePieceSink{done: make(chan struct{})}
}

func (s *onePieceSink) CurrentDemand() int {
	return 0
}

func (s *onePieceSink) Emit(c chunk.Chunk) {
	s.mu.Lock()
	s.body = append(s.body, c.Bytes()...)
	s.mu.Unlock()
	c.Release()
	s.sub.Request(1)
}

func (s *onePieceSink) Complete() {
	close(s.done)
}

func (s *onePieceSink) Fail(error) {
	close(s.done)
}

func newTestHandler(t *testing.T, data ...[]byte) (*handler, *connection.Manager, *connection.Pooled) {
	t.Helper()

	manager := connection.NewManager(4)
	client := dummy.NewMockClient(data...)
	key := connection.Key{Scheme: "http", Host: "example.com"}
	conn := manager.Wrap(client, key)

	pool := chunk.New(4096, 8)
	h := newHandler(conn, manager, pool, 4096, -1, false, 2*time.Second)
	conn.Pipeline.Insert(responseHandlerStage, h)

	return h, manager, conn
}

func awaitHead(t *testing.T, h *handler) (StreamedResponse, error) {
	t.Helper()

	type result struct {
		sr  StreamedResponse
		err error
	}

	resCh := make(chan result, 1)
	go h.run(func(sr StreamedResponse, err error) {
		resCh <- result{sr, err}
	})

	select {
	case res := <-resCh:
		return res.sr, res.err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response head")
		return StreamedResponse{}, nil
	}
}

func TestHandlerContentLengthBody(t *testing.T) {
	h, manager, conn := newTestHandler(t, []byte("HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello world"))

	sr, err := awaitHead(t, h)
	require.NoError(t, err)
	require.EqualValues(t, 200, sr.Head.Code)

	sink := newRecordingSink()
	sr.Subscribe(sink)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for body completion")
	}

	require.True(t, sink.completed)
	require.Nil(t, sink.failed)
	require.Equal(t, "hello world", string(sink.body))

	// HTTP/1.1 with no Connection: close is keep-alive eligible, so the
	// connection should have been returned to the pool.
	require.Same(t, conn, manager.Acquire(connection.Key{Scheme: "http", Host: "example.com"}))
}

func TestHandlerChunkedBody(t *testing.T) {
	h, _, _ := newTestHandler(t, []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"))

	sr, err := awaitHead(t, h)
	require.NoError(t, err)

	sink := newRecordingSink()
	sr.Subscribe(sink)

	<-sink.done
	require.True(t, sink.completed)
	require.Equal(t, "hello world", string(sink.body))
}

func TestHandlerConnectionCloseIsNotPooled(t *testing.T) {
	h, manager, _ := newTestHandler(t, []byte("HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 2\r\n\r\nhi"))

	sr, err := awaitHead(t, h)
	require.NoError(t, err)

	sink := newRecordingSink()
	sr.Subscribe(sink)
	<-sink.done

	require.Nil(t, manager.Acquire(connection.Key{Scheme: "http", Host: "example.com"}))
}

func TestHandlerBackpressureOneAtATime(t *testing.T) {
	h, _, _ := newTestHandler(t,
		[]byte("HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\n"),
		[]byte("hello"),
		[]byte(" world"),
	)

	sr, err := awaitHead(t, h)
	require.NoError(t, err)

	sink := newOnePieceSink()
	sub := sr.Subscribe(sink)
	sink.sub = sub
	sub.Request(1)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for body completion")
	}

	require.Equal(t, "hello world", string(sink.body))
}

func TestHandlerDiscardReleasesPendingChunks(t *testing.T) {
	h, manager, _ := newTestHandler(t, []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))

	sr, err := awaitHead(t, h)
	require.NoError(t, err)

	sr.Discard()

	// give the handler goroutine a moment to process the posted discard
	// and exit its run loop.
	select {
	case <-h.closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never terminated after Discard")
	}

	require.Nil(t, manager.Acquire(connection.Key{Scheme: "http", Host: "example.com"}))
}

func TestHandlerCancelForceDisposesWithoutFailOrComplete(t *testing.T) {
	manager := connection.NewManager(4)
	// Blocking beyond the initial piece means the read scheduled once the
	// sink subscribes just parks instead of racing a premature EOF against
	// the Cancel call below.
	client := dummy.NewMockClient([]byte("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\npartial")).Block()
	key := connection.Key{Scheme: "http", Host: "example.com"}
	conn := manager.Wrap(client, key)

	pool := chunk.New(4096, 8)
	h := newHandler(conn, manager, pool, 4096, -1, false, 2*time.Second)
	conn.Pipeline.Insert(responseHandlerStage, h)

	sr, err := awaitHead(t, h)
	require.NoError(t, err)

	sink := newRecordingSink()
	sub := sr.Subscribe(sink)
	sub.Cancel()

	select {
	case <-h.closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never terminated after Cancel")
	}

	select {
	case <-sink.done:
		t.Fatal("cancel must not deliver Complete or Fail to the sink")
	default:
	}

	require.Nil(t, manager.Acquire(connection.Key{Scheme: "http", Host: "example.com"}))
}

func TestHandlerTransportClosedBeforeHeadFails(t *testing.T) {
	h, _, _ := newTestHandler(t)
	// no queued data and not blocking: the mock client's Read returns
	// io.EOF immediately, exercising the transport-closed-before-head path.

	sr, err := awaitHead(t, h)
	require.Error(t, err)
	require.Equal(t, StreamedResponse{}, sr)
}

// TestHandlerAutoReadFalseSuppressesTheInitialRead proves AutoRead actually
// gates the handler's pre-head reads rather than merely documenting a
// hard-coded schedule: with it turned off before run starts, the handler
// never schedules a read on its own, so the head never arrives until
// something schedules one explicitly.
func TestHandlerAutoReadFalseSuppressesTheInitialRead(t *testing.T) {
	h, _, conn := newTestHandler(t, []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	conn.SetAutoRead(false)

	type result struct {
		sr  StreamedResponse
		err error
	}
	resCh := make(chan result, 1)
	go h.run(func(sr StreamedResponse, err error) {
		resCh <- result{sr, err}
	})

	select {
	case <-resCh:
		t.Fatal("handler read the head despite AutoRead being disabled")
	case <-time.After(150 * time.Millisecond):
	}

	h.post(h.scheduleRead)

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		require.EqualValues(t, 200, res.sr.Head.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for head after manually scheduling a read")
	}
}

func TestHandlerInformationalResponseStripsContentLength(t *testing.T) {
	h, _, _ := newTestHandler(t, []byte("HTTP/1.1 100 Continue\r\nContent-Length: 5\r\n\r\n"))

	sr, err := awaitHead(t, h)
	require.NoError(t, err)
	require.False(t, sr.Head.Headers.Has("Content-Length"))
}

// TestHandlerNeverSubscribedReleasesBufferedChunksAfterAbandonGrace
// reproduces scenario (f): the server has already sent the whole body
// before the caller ever attaches, and the caller then calls neither
// Subscribe nor Discard. The handler must still release the chunks it
// buffered and force-dispose the connection on its own, rather than
// leaking the response's goroutine and connection forever.
func TestHandlerNeverSubscribedReleasesBufferedChunksAfterAbandonGrace(t *testing.T) {
	manager := connection.NewManager(4)
	client := dummy.NewMockClient([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	key := connection.Key{Scheme: "http", Host: "example.com"}
	conn := manager.Wrap(client, key)

	pool := chunk.New(4096, 8)
	h := newHandler(conn, manager, pool, 4096, -1, false, 50*time.Millisecond)
	conn.Pipeline.Insert(responseHandlerStage, h)

	sr, err := awaitHead(t, h)
	require.NoError(t, err)
	_ = sr // deliberately never subscribed to and never discarded

	select {
	case <-h.closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never auto-disposed an abandoned, never-subscribed response")
	}

	require.Nil(t, manager.Acquire(key))
}

// TestHandlerSubscribingBeforeAbandonGraceElapsesDisarmsTheGuard makes sure
// a Subscribe that lands before the grace period elapses wins: the guard
// must not fire later and force-dispose a connection that is by then
// legitimately streaming to a subscriber.
func TestHandlerSubscribingBeforeAbandonGraceElapsesDisarmsTheGuard(t *testing.T) {
	manager := connection.NewManager(4)
	client := dummy.NewMockClient([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	key := connection.Key{Scheme: "http", Host: "example.com"}
	conn := manager.Wrap(client, key)

	pool := chunk.New(4096, 8)
	h := newHandler(conn, manager, pool, 4096, -1, false, 50*time.Millisecond)
	conn.Pipeline.Insert(responseHandlerStage, h)

	sr, err := awaitHead(t, h)
	require.NoError(t, err)

	sink := newRecordingSink()
	sr.Subscribe(sink)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for body completion")
	}

	require.True(t, sink.completed)
	require.Equal(t, "hello", string(sink.body))

	// wait past the grace period the abandon guard would have fired at, to
	// make sure it was really disarmed rather than merely racing a slow
	// Subscribe.
	time.Sleep(100 * time.Millisecond)
	require.Same(t, conn, manager.Acquire(key))
}
