package dummy

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockClient(t *testing.T) {
	t.Run("drains queue then EOF", func(t *testing.T) {
		slices := [][]byte{
			[]byte("Hello"), []byte("world!"),
		}
		client := NewMockClient(slices...)

		for _, slice := range slices {
			got, err := client.Read()
			require.NoError(t, err)
			require.Equal(t, string(slice), string(got))
		}

		_, err := client.Read()
		require.EqualError(t, err, io.EOF.Error())
	})

	t.Run("pushback is served before the queue", func(t *testing.T) {
		client := NewMockClient([]byte("second"))
		client.Pushback([]byte("first"))

		got, err := client.Read()
		require.NoError(t, err)
		require.Equal(t, "first", string(got))

		got, err = client.Read()
		require.NoError(t, err)
		require.Equal(t, "second", string(got))
	})

	t.Run("blocking client unblocks on close", func(t *testing.T) {
		client := NewMockClient().Block()
		done := make(chan struct{})

		go func() {
			_, err := client.Read()
			require.ErrorIs(t, err, io.EOF)
			close(done)
		}()

		require.NoError(t, client.Close())
		<-done
	})

	t.Run("write journals by default", func(t *testing.T) {
		client := NewMockClient()
		n, err := client.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, len("GET / HTTP/1.1\r\n\r\n"), n)
		require.Equal(t, "GET / HTTP/1.1\r\n\r\n", client.Written())
	})
}
