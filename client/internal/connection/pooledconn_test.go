package connection

import (
	"testing"

	"github.com/indigo-web/flux/transport/dummy"
	"github.com/stretchr/testify/require"
)

func TestNewPooledDefaultsAutoReadOn(t *testing.T) {
	pooled := newPooled(dummy.NewMockClient(), Key{Scheme: "http", Host: "example.com"})
	require.True(t, pooled.AutoRead())
	require.NotNil(t, pooled.Pipeline)
}

func TestPooledSetAutoRead(t *testing.T) {
	pooled := newPooled(dummy.NewMockClient(), Key{Scheme: "http", Host: "example.com"})
	pooled.SetAutoRead(false)
	require.False(t, pooled.AutoRead())
}

func TestPooledResetRestoresPristineState(t *testing.T) {
	pooled := newPooled(dummy.NewMockClient(), Key{Scheme: "http", Host: "example.com"})
	pooled.SetAutoRead(false)
	pooled.Pipeline.Insert("stage", nil)

	pooled.reset()

	require.True(t, pooled.AutoRead())
	require.False(t, pooled.Pipeline.Has("stage"))
}

func TestPooledDelegatesToUnderlyingClient(t *testing.T) {
	client := dummy.NewMockClient([]byte("hello"))
	pooled := newPooled(client, Key{Scheme: "http", Host: "example.com"})

	data, err := pooled.Read()
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	n, err := pooled.Write([]byte("request"))
	require.NoError(t, err)
	require.Equal(t, len("request"), n)
	require.Equal(t, "request", client.Written())
}
