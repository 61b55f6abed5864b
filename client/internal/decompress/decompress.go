// Package decompress inserts a decoding pipeline.Stage in front of the
// streaming response handler when a response declares an understood
// Content-Encoding. It reaches for the same compress/gzip package the
// teacher's http/coding.GZIP wraps, restructured to inflate across however
// many pieces the transport delivers the body in rather than one whole
// buffer at a time, since a live response body arrives incrementally.
package decompress

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"

	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/client/internal/pipeline"
)

// GzipStage incrementally inflates a gzip response body.
type GzipStage struct {
	in     bytes.Buffer
	reader *gzip.Reader
	out    []byte
}

func NewGzipStage(chunkSize int) *GzipStage {
	return &GzipStage{out: make([]byte, chunkSize)}
}

func (g *GzipStage) Process(data []byte) ([]byte, error) {
	g.in.Write(data)

	if g.reader == nil {
		r, err := gzip.NewReader(&g.in)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// gzip header not fully buffered yet; wait for more input.
				return nil, nil
			}

			return nil, clienterr.Wrap(clienterr.ProtocolError, "invalid gzip header", err)
		}

		g.reader = r
	}

	var decoded []byte

	for {
		n, err := g.reader.Read(g.out)
		if n > 0 {
			decoded = append(decoded, g.out[:n]...)
		}

		if err == nil {
			if n == 0 {
				break
			}

			continue
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}

		return decoded, clienterr.Wrap(clienterr.ProtocolError, "gzip decode failed", err)
	}

	return decoded, nil
}

// understood lists the single-token Content-Encoding values this client
// knows how to strip. A multi-token or unrecognized Content-Encoding is
// left alone and passed through undecoded (supplemented feature: original
// source's single-token decompression gating).
var understood = map[string]bool{
	"gzip":   true,
	"x-gzip": true,
}

// NewStage returns a decoding stage for token and true, or nil and false if
// token is not a single understood encoding.
func NewStage(token string, chunkSize int) (pipeline.Stage, bool) {
	if !understood[token] {
		return nil, false
	}

	return NewGzipStage(chunkSize), true
}
