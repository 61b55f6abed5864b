package client

import (
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/indigo-web/flux/client/chunk"
	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/client/internal/connection"
	httprender "github.com/indigo-web/flux/client/internal/render/http1"
	"github.com/indigo-web/flux/transport"
)

// action is one attempt within a redirect chain (spec §4.D): acquire a
// connection, frame and write the request, then hand off to a handler for
// response dispatch. Each call to execute owns exactly one goroutine for
// the handler's lifetime.
type action struct {
	cfg     RequestConfig
	manager *connection.Manager
	pool    *chunk.Pool
}

func newAction(cfg RequestConfig, manager *connection.Manager, pool *chunk.Pool) *action {
	return &action{cfg: cfg, manager: manager, pool: pool}
}

type headResult struct {
	sr  StreamedResponse
	err error
}

func (a *action) execute() (StreamedResponse, error) {
	key := connection.Key{Scheme: a.cfg.Target.Scheme, Host: a.cfg.Target.Host}

	conn := a.manager.Acquire(key)
	if conn == nil {
		dialed, err := a.dial(key)
		if err != nil {
			return StreamedResponse{}, clienterr.Wrap(clienterr.ConnectTimeout, "failed to establish connection", err)
		}

		conn = a.manager.Wrap(dialed, key)
	}

	// A connection reused from the pool was dialed by an earlier request
	// and may still carry that request's read timeout; apply this one's
	// regardless of whether the connection is fresh or reused.
	conn.SetTimeout(a.cfg.ReadTimeout)

	h := newHandler(conn, a.manager, a.pool, a.cfg.ResponseMaxChunkSize, a.cfg.MaxContentLength, a.cfg.DecompressResponse, a.cfg.ReadTimeout)
	conn.Pipeline.Insert(responseHandlerStage, h)

	headBytes := httprender.NewRenderer(make([]byte, 0, 512)).
		RenderHead(a.cfg.Method, requestURI(a.cfg.Target), a.cfg.Headers)

	if _, err := conn.Write(headBytes); err != nil {
		_ = a.manager.Discard(conn)
		return StreamedResponse{}, clienterr.Wrap(clienterr.TransportClosed, "writing request head", err)
	}

	if strings.EqualFold(a.cfg.Headers.Value("Expect"), "100-continue") && a.cfg.Body.Kind() != ContentEmpty {
		leftover, err := a.awaitContinue(conn)
		if err != nil {
			_ = a.manager.Discard(conn)
			return StreamedResponse{}, err
		}

		if len(leftover) > 0 {
			conn.Pushback(leftover)
		}
	}

	if err := a.writeBody(conn); err != nil {
		_ = a.manager.Discard(conn)
		return StreamedResponse{}, err
	}

	headCh := make(chan headResult, 1)
	go h.run(func(sr StreamedResponse, err error) {
		headCh <- headResult{sr, err}
	})

	res := <-headCh
	return res.sr, res.err
}

// requestURI renders u's path (and query, if any) the way it belongs on a
// request line, defaulting to "/" for an empty path.
func requestURI(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return path
}

// awaitContinue blocks, bounded by the configured read timeout, waiting
// for a "100 Continue" interim response before the request body is
// written. If the timeout elapses first, the body is written anyway
// (spec §4.D step 3). Any bytes read past the interim response's blank
// line belong to the real, final response and are returned for Pushback.
func (a *action) awaitContinue(conn *connection.Pooled) ([]byte, error) {
	deadline := time.Now().Add(a.cfg.ReadTimeout)
	var buf []byte

	for {
		if time.Now().After(deadline) {
			return buf, nil
		}

		data, err := conn.Read()
		if err != nil {
			if timeoutErr, ok := err.(interface{ Timeout() bool }); ok && timeoutErr.Timeout() {
				return buf, nil
			}

			return nil, clienterr.Wrap(clienterr.TransportClosed, "awaiting 100-continue", err)
		}

		buf = append(buf, data...)

		if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx != -1 {
			if bytes.HasPrefix(buf, []byte("HTTP/1.1 100")) || bytes.HasPrefix(buf, []byte("HTTP/1.0 100")) {
				return buf[idx+4:], nil
			}

			// server skipped the interim response and sent the final one
			// directly; hand it all back so the handler parses it as-is.
			return buf, nil
		}
	}
}

func (a *action) writeBody(conn *connection.Pooled) error {
	switch a.cfg.Body.Kind() {
	case ContentEmpty:
		return nil
	case ContentBuffer:
		buf, _ := a.cfg.Body.TakeBuffer()
		a.cfg.Body.Discard()

		if len(buf) == 0 {
			return nil
		}

		_, err := conn.Write(buf)
		if err != nil {
			return clienterr.Wrap(clienterr.TransportClosed, "writing request body", err)
		}

		return nil
	case ContentStream:
		source, _ := a.cfg.Body.TakeSource()

		r, err := source.Open()
		if err != nil {
			return clienterr.Wrap(clienterr.ProtocolError, "opening request body stream", err)
		}

		if a.cfg.Body.IsChunked() {
			return a.writeChunked(conn, r)
		}

		return a.writeKnownLength(conn, r, a.cfg.Body.Length())
	default:
		return nil
	}
}

func (a *action) writeKnownLength(conn *connection.Pooled, r io.Reader, length int64) error {
	buf := make([]byte, 32*1024)
	var written int64

	for written < length {
		n, err := r.Read(buf)
		if n > 0 {
			toWrite := buf[:n]
			if written+int64(n) > length {
				toWrite = toWrite[:length-written]
			}

			if _, werr := conn.Write(toWrite); werr != nil {
				return clienterr.Wrap(clienterr.TransportClosed, "writing request body", werr)
			}

			written += int64(len(toWrite))
		}

		if err != nil {
			if err == io.EOF {
				break
			}

			return clienterr.Wrap(clienterr.ProtocolError, "reading request body stream", err)
		}
	}

	if written < length {
		return clienterr.New(clienterr.IncompleteBody, "request body stream ended before its declared length")
	}

	return nil
}

func (a *action) writeChunked(conn *connection.Pooled, r io.Reader) error {
	buf := make([]byte, 32*1024)
	frame := make([]byte, 0, 32*1024+32)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			frame = httprender.RenderChunk(frame[:0], buf[:n])
			if _, werr := conn.Write(frame); werr != nil {
				return clienterr.Wrap(clienterr.TransportClosed, "writing request body", werr)
			}
		}

		if err != nil {
			if err == io.EOF {
				break
			}

			return clienterr.Wrap(clienterr.ProtocolError, "reading request body stream", err)
		}
	}

	frame = httprender.RenderLastChunk(frame[:0])
	if _, err := conn.Write(frame); err != nil {
		return clienterr.Wrap(clienterr.TransportClosed, "writing request body", err)
	}

	return nil
}

func (a *action) dial(key connection.Key) (transport.Client, error) {
	address := key.Host
	if !strings.Contains(address, ":") {
		if key.Scheme == "https" {
			address += ":443"
		} else {
			address += ":80"
		}
	}

	d := net.Dialer{Timeout: a.cfg.ConnectTimeout}

	var conn net.Conn
	var err error

	if key.Scheme == "https" {
		tlsCfg := a.cfg.TLSContext
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		} else {
			tlsCfg = tlsCfg.Clone()
		}

		if a.cfg.TLSParams != nil {
			a.cfg.TLSParams(tlsCfg)
		}

		dialer := &tls.Dialer{NetDialer: &d, Config: tlsCfg}
		conn, err = dialer.Dial("tcp", address)
	} else {
		conn, err = d.Dial("tcp", address)
	}

	if err != nil {
		return nil, err
	}

	return transport.NewClient(conn, a.cfg.ReadTimeout, make([]byte, 16*1024)), nil
}
