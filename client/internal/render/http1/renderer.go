// Package http1 renders an outbound HTTP/1.1 request line, headers and
// chunked body framing into a reusable byte buffer. It leaves the actual
// socket write to the caller (client/action.go), the same split the
// teacher's server-side renderer draws between building bytes and pushing
// them onto a net.Conn.
package http1

import (
	"strconv"

	"github.com/indigo-web/flux/http/method"
	"github.com/indigo-web/flux/http/proto"
	"github.com/indigo-web/flux/kv"
)

// Renderer accumulates a request head into an internally owned buffer,
// reused across requests to avoid per-request allocation.
type Renderer struct {
	buff []byte
}

func NewRenderer(buff []byte) *Renderer {
	return &Renderer{buff: buff[:0]}
}

// RenderHead renders the request line and headers, returning a slice valid
// until the next call to RenderHead on the same Renderer.
func (r *Renderer) RenderHead(m method.Method, path string, headers *kv.Storage) []byte {
	r.buff = r.buff[:0]
	r.buff = append(r.buff, m.String()...)
	r.buff = append(r.buff, ' ')
	r.buff = append(r.buff, path...)
	r.buff = append(r.buff, ' ')
	// proto.Proto.String() already carries the trailing space.
	r.buff = append(r.buff, proto.HTTP11.String()...)
	r.buff = append(r.buff, "\r\n"...)

	for _, pair := range headers.Expose() {
		r.buff = append(r.buff, pair.Key...)
		r.buff = append(r.buff, ':', ' ')
		r.buff = append(r.buff, pair.Value...)
		r.buff = append(r.buff, "\r\n"...)
	}

	r.buff = append(r.buff, "\r\n"...)

	return r.buff
}

// RenderChunk appends chunk to dst framed as one Transfer-Encoding: chunked
// piece and returns the grown slice.
func RenderChunk(dst, chunk []byte) []byte {
	dst = strconv.AppendInt(dst, int64(len(chunk)), 16)
	dst = append(dst, "\r\n"...)
	dst = append(dst, chunk...)
	dst = append(dst, "\r\n"...)

	return dst
}

// RenderLastChunk appends the terminating zero-length chunk that ends a
// chunked request body.
func RenderLastChunk(dst []byte) []byte {
	return append(dst, "0\r\n\r\n"...)
}
