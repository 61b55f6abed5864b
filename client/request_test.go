package client

import (
	"testing"
	"time"

	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/config"
	"github.com/indigo-web/flux/http/method"
	"github.com/indigo-web/flux/http/mime"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	cfg, err := Build("http://example.com/path", config.DefaultClient(), nil)
	require.NoError(t, err)

	require.Equal(t, method.GET, cfg.Method)
	require.Equal(t, "example.com", cfg.Target.Host)
	require.Equal(t, ContentEmpty, cfg.Body.Kind())
	require.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	require.Equal(t, 30*time.Second, cfg.ReadTimeout)
	require.Equal(t, 8192, cfg.ResponseMaxChunkSize)
}

func TestBuildInvalidTarget(t *testing.T) {
	_, err := Build("http://\x7f", config.DefaultClient(), nil)
	require.Error(t, err)
	require.Equal(t, clienterr.ProtocolError, clienterr.KindOf(err))
}

func TestBuildConfiguratorError(t *testing.T) {
	boom := clienterr.New(clienterr.ProtocolError, "boom")
	_, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Buffer([]byte("discarded"))
		return boom
	})

	require.ErrorIs(t, err, boom)
}

func TestBuildRejectsNegativeMaxRedirects(t *testing.T) {
	_, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.MaxRedirects(-1)
		return nil
	})

	require.Error(t, err)
	require.Equal(t, clienterr.ProtocolError, clienterr.KindOf(err))
}

func TestBuildRejectsZeroLengthStreamKnown(t *testing.T) {
	_, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.StreamKnown(readerSource{data: "", restartable: true}, 0)
		return nil
	})

	require.Error(t, err)
}

func TestBuilderTextSetsContentType(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Text("hello", mime.UTF8)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "text/plain;charset=UTF-8", cfg.Headers.Value("Content-Type"))
}

func TestBuilderTextRespectsExplicitContentType(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Header("Content-Type", "text/markdown")
		b.Text("hello", mime.UTF8)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "text/markdown", cfg.Headers.Value("Content-Type"))
}

func TestBuilderJSONSetsBodyAndContentType(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.JSON(map[string]int{"a": 1})
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, mime.JSON, cfg.Headers.Value("Content-Type"))
	buf, ok := cfg.Body.TakeBuffer()
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(buf))
}

func TestBuilderBasicAuth(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.BasicAuth("user", "pass")
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "Basic dXNlcjpwYXNz", cfg.Headers.Value("Authorization"))
}

func TestBuilderBasicAuthReplacesExistingCaseInsensitively(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Header("authorization", "Bearer old-token")
		b.BasicAuth("user", "pass")
		return nil
	})

	require.NoError(t, err)
	require.Len(t, cfg.Headers.Values("Authorization"), 1)
	require.Equal(t, "Basic dXNlcjpwYXNz", cfg.Headers.Value("Authorization"))
}

func TestBuildSetsHostFromTarget(t *testing.T) {
	cfg, err := Build("http://example.com:8080/path", config.DefaultClient(), nil)
	require.NoError(t, err)
	require.Equal(t, "example.com:8080", cfg.Headers.Value("Host"))
}

func TestBuildRespectsExplicitHost(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Header("Host", "override.example")
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "override.example", cfg.Headers.Value("Host"))
}

func TestBuildEmptyBodyOmitsFramingHeaders(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), nil)
	require.NoError(t, err)
	require.False(t, cfg.Headers.Has("Content-Length"))
	require.False(t, cfg.Headers.Has("Transfer-Encoding"))
}

func TestBuildBufferBodySetsContentLength(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Buffer([]byte("hello"))
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "5", cfg.Headers.Value("Content-Length"))
	require.False(t, cfg.Headers.Has("Transfer-Encoding"))
}

func TestBuildStreamKnownSetsContentLength(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.StreamKnown(readerSource{data: "hello world", restartable: true}, 11)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "11", cfg.Headers.Value("Content-Length"))
}

func TestBuildStreamUnknownSetsChunkedTransferEncoding(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.StreamUnknown(readerSource{data: "hello", restartable: true})
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "chunked", cfg.Headers.Value("Transfer-Encoding"))
	require.False(t, cfg.Headers.Has("Content-Length"))
}

func TestBuildRespectsExplicitContentLength(t *testing.T) {
	cfg, err := Build("http://example.com", config.DefaultClient(), func(b *Builder) error {
		b.Header("Content-Length", "999")
		b.Buffer([]byte("hello"))
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, "999", cfg.Headers.Value("Content-Length"))
}
