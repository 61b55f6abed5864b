package client

import "io"

// ContentKind classifies how a request body is framed on the wire.
type ContentKind uint8

const (
	// ContentEmpty carries no body and no Content-Length.
	ContentEmpty ContentKind = iota
	// ContentBuffer is a single in-memory byte slice with a known length.
	ContentBuffer
	// ContentStream is a streamed body, known or unknown length; use
	// Content.Length() to tell them apart (-1 means unknown).
	ContentStream
)

// StreamSource produces the bytes of a streamed request body. It is
// opened at most once per request attempt, and possibly more than once
// across a redirect chain (see Restartable).
type StreamSource interface {
	// Open returns a reader starting at the beginning of the body. It is
	// called once per attempt that actually writes a body.
	Open() (io.Reader, error)
	// Restartable reports whether a second Open call, after a prior one
	// already ran to completion or partway, is valid. Buffer bodies are
	// always restartable by construction; a single-shot stream (e.g. one
	// reading from an unbuffered pipe) must report false so a redirect
	// replay fails fast with ProtocolError instead of resending garbage.
	Restartable() bool
}

// Content is the tagged variant backing a RequestConfig's body (§3, §4.A).
// The zero value is Empty.
type Content struct {
	kind      ContentKind
	buf       []byte
	source    StreamSource
	length    int64 // -1 when unknown; only meaningful for ContentStream
	discarded bool
}

// Empty returns a bodyless Content.
func Empty() Content {
	return Content{kind: ContentEmpty, length: -1}
}

// Buffer returns a Content wrapping b. b's length becomes the
// Content-Length; ownership of b transfers to the Content until
// TakeBuffer or Discard is called.
func Buffer(b []byte) Content {
	return Content{kind: ContentBuffer, buf: b, length: int64(len(b))}
}

// StreamKnown returns a streamed Content with a declared length. length
// must be > 0 (validated by the Builder, per §4.B).
func StreamKnown(source StreamSource, length int64) Content {
	return Content{kind: ContentStream, source: source, length: length}
}

// StreamUnknown returns a streamed Content with no declared length,
// forcing chunked transfer framing.
func StreamUnknown(source StreamSource) Content {
	return Content{kind: ContentStream, source: source, length: -1}
}

// Length returns the Content-Length to declare, or -1 if unknown (empty
// bodies report 0, matching an explicit zero-length Content-Length).
func (c Content) Length() int64 {
	if c.kind == ContentEmpty {
		return 0
	}

	return c.length
}

// Kind reports the variant of c.
func (c Content) Kind() ContentKind {
	return c.kind
}

// IsChunked reports whether c must be framed with Transfer-Encoding:
// chunked, i.e. it is a stream of unknown length.
func (c Content) IsChunked() bool {
	return c.kind == ContentStream && c.length < 0
}

// TakeBuffer returns the owned buffer and true if c is a Buffer content.
// After a successful call the caller owns the returned slice; c no longer
// does.
func (c *Content) TakeBuffer() ([]byte, bool) {
	if c.kind != ContentBuffer || c.discarded {
		return nil, false
	}

	b := c.buf
	c.buf = nil
	c.discarded = true

	return b, true
}

// Source returns the StreamSource and true if c is a stream content,
// without consuming it. Used to inspect a body (e.g. Restartable) without
// giving up Content's ownership of it.
func (c Content) Source() (StreamSource, bool) {
	if c.kind != ContentStream || c.source == nil {
		return nil, false
	}

	return c.source, true
}

// TakeSource returns the StreamSource and true if c is a stream content.
func (c *Content) TakeSource() (StreamSource, bool) {
	if c.kind != ContentStream || c.source == nil {
		return nil, false
	}

	return c.source, true
}

// Discard idempotently releases any buffer held by c. It is always safe
// to call, any number of times, on any Content variant (§4.A, §8.7).
func (c *Content) Discard() {
	c.discarded = true
	c.buf = nil
}
