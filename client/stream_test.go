package client

import (
	"testing"

	"github.com/indigo-web/flux/client/chunk"
	"github.com/indigo-web/flux/client/clienterr"
	"github.com/stretchr/testify/require"
)

func TestCollectSinkAccumulatesAndCompletes(t *testing.T) {
	pool := chunk.New(64, 4)
	sink := newCollectSink(-1)
	sink.sub = Subscription{}

	sink.Emit(pool.Fill([]byte("hello ")))
	sink.Emit(pool.Fill([]byte("world")))
	sink.Complete()

	require.Equal(t, "hello world", string(sink.buf))
	require.NoError(t, sink.err)

	select {
	case <-sink.done:
	default:
		t.Fatal("done channel was not closed")
	}
}

func TestCollectSinkFail(t *testing.T) {
	sink := newCollectSink(-1)
	boom := clienterr.New(clienterr.TransportClosed, "boom")
	sink.Fail(boom)

	require.ErrorIs(t, sink.err, boom)
}

func TestCollectSinkUnboundedDemand(t *testing.T) {
	sink := newCollectSink(-1)
	require.Greater(t, sink.CurrentDemand(), 0)

	sink.Fail(clienterr.New(clienterr.Unknown, "x"))
	require.Equal(t, 0, sink.CurrentDemand())
}

func TestSubscriptionRequestIgnoresNonPositive(t *testing.T) {
	// A zero-value Subscription with n <= 0 must never touch h, since h is
	// nil here; a positive n would panic through a nil handler.
	var sub Subscription
	sub.Request(0)
	sub.Request(-5)
}
