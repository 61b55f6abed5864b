package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalChunk(t *testing.T) {
	c := Terminal()
	require.True(t, c.IsTerminal())
	require.Nil(t, c.Bytes())
	require.Equal(t, 0, c.Len())

	// Release on a terminal chunk is always a safe no-op.
	c.Release()
}

func TestPoolFillReturnsOwnedCopy(t *testing.T) {
	p := New(64, 4)
	src := []byte("hello")

	c := p.Fill(src)
	require.False(t, c.IsTerminal())
	require.Equal(t, "hello", string(c.Bytes()))

	src[0] = 'X'
	require.Equal(t, "hello", string(c.Bytes()))

	c.Release()
}

func TestPoolRecyclesBuffers(t *testing.T) {
	p := New(64, 1)

	c1 := p.Fill([]byte("first"))
	c1.Release()

	c2 := p.Fill([]byte("second"))
	require.Equal(t, "second", string(c2.Bytes()))
	c2.Release()
}

func TestChunkMaxChunk(t *testing.T) {
	p := New(128, 4)
	require.Equal(t, 128, p.MaxChunk())
}
