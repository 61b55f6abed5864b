package client

import (
	"crypto/tls"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/config"
	"github.com/indigo-web/flux/http/method"
	"github.com/indigo-web/flux/http/mime"
	"github.com/indigo-web/flux/kv"
	"golang.org/x/text/encoding/charmap"
)

// Configurator mutates a Builder seeded with the client's defaults to
// produce a RequestConfig (spec §4.B). Returning an error aborts the
// build; any body buffer already assigned to the Builder is discarded
// before the error propagates.
type Configurator func(*Builder) error

// RedirectDecision is consulted with the response head that triggered a
// potential redirect (spec §4.F step 2). A nil return aborts redirect
// chasing and surfaces the response as received; a non-nil return is
// composed onto the next hop's request.
type RedirectDecision func(head ResponseHead) Configurator

// RequestConfig is the immutable record a Builder snapshots into once a
// Configurator has run (spec §3).
type RequestConfig struct {
	Target               *url.URL
	Method               method.Method
	Headers              *kv.Storage
	Body                 Content
	ConnectTimeout       time.Duration
	ReadTimeout          time.Duration
	MaxRedirects         int
	MaxContentLength     int64
	ResponseMaxChunkSize int
	DecompressResponse   bool
	OnRedirect           RedirectDecision
	TLSContext           *tls.Config
	TLSParams            func(*tls.Config)
}

// Builder is the mutable seed a Configurator operates on. Method chaining
// mirrors the fluent style of kv.Storage.Add; validation happens once, in
// Build.
type Builder struct {
	target               *url.URL
	method               method.Method
	headers              *kv.Storage
	body                 Content
	textCharset          mime.Charset
	connectTimeout       time.Duration
	readTimeout          time.Duration
	maxRedirects         int
	maxContentLength     int64
	responseMaxChunkSize int
	decompressResponse   bool
	onRedirect           RedirectDecision
	tlsContext           *tls.Config
	tlsParams            func(*tls.Config)
	err                  error
}

// Build parses target, seeds a Builder from defaults, applies configurator
// and validates the result (spec §4.B). Defaults absent from defaults fall
// back to 30s connect, 30s read, unbounded max-content-length, 8192-byte
// response chunks, matching config.DefaultClient.
func Build(target string, defaults config.Client, configurator Configurator) (RequestConfig, error) {
	u, err := url.Parse(target)
	if err != nil {
		return RequestConfig{}, clienterr.Wrap(clienterr.ProtocolError, "invalid target URI", err)
	}

	b := &Builder{
		target:               u,
		method:               method.GET,
		headers:              kv.New(),
		body:                 Empty(),
		connectTimeout:       orDefault(defaults.ConnectTimeout, 30*time.Second),
		readTimeout:          orDefault(defaults.ReadTimeout, 30*time.Second),
		maxRedirects:         defaults.MaxRedirects,
		maxContentLength:     defaults.MaxContentLength,
		responseMaxChunkSize: orDefaultInt(defaults.ResponseMaxChunkSize, 8192),
		decompressResponse:   defaults.DecompressResponse,
	}
	if defaults.MaxContentLength == 0 {
		b.maxContentLength = -1
	}

	if configurator != nil {
		if err := configurator(b); err != nil {
			b.body.Discard()
			return RequestConfig{}, err
		}
	}

	if b.err != nil {
		b.body.Discard()
		return RequestConfig{}, b.err
	}

	if b.maxRedirects < 0 {
		b.body.Discard()
		return RequestConfig{}, clienterr.New(clienterr.ProtocolError, "max_redirects must be >= 0")
	}

	if b.responseMaxChunkSize <= 0 {
		b.body.Discard()
		return RequestConfig{}, clienterr.New(clienterr.ProtocolError, "response_max_chunk_size must be > 0")
	}

	if b.body.Kind() == ContentStream && !b.body.IsChunked() && b.body.Length() <= 0 {
		b.body.Discard()
		return RequestConfig{}, clienterr.New(clienterr.ProtocolError, "stream_known length must be > 0")
	}

	if b.textCharset != "" && !b.headers.Has("Content-Type") {
		b.headers.Add("Content-Type", "text/plain;charset="+charsetHeaderName(b.textCharset))
	}

	if !b.headers.Has("Host") {
		b.headers.Add("Host", b.target.Host)
	}

	// Content-Length/Transfer-Encoding are derived from the body itself
	// (spec §3, §6) rather than left to the caller, the same "only if
	// absent" pattern Content-Type already follows above: Buffer and
	// StreamKnown declare a length, StreamUnknown forces chunked framing,
	// Empty declares neither.
	switch {
	case b.body.IsChunked():
		if !b.headers.Has("Transfer-Encoding") {
			b.headers.Add("Transfer-Encoding", "chunked")
		}
	case b.body.Kind() != ContentEmpty:
		if !b.headers.Has("Content-Length") {
			b.headers.Add("Content-Length", strconv.FormatInt(b.body.Length(), 10))
		}
	}

	return RequestConfig{
		Target:               b.target,
		Method:               b.method,
		Headers:              b.headers,
		Body:                 b.body,
		ConnectTimeout:       b.connectTimeout,
		ReadTimeout:          b.readTimeout,
		MaxRedirects:         b.maxRedirects,
		MaxContentLength:     b.maxContentLength,
		ResponseMaxChunkSize: b.responseMaxChunkSize,
		DecompressResponse:   b.decompressResponse,
		OnRedirect:           b.onRedirect,
		TLSContext:           b.tlsContext,
		TLSParams:            b.tlsParams,
	}, nil
}

func (b *Builder) Method(m method.Method) *Builder {
	b.method = m
	return b
}

func (b *Builder) Header(key, value string) *Builder {
	b.headers.Add(key, value)
	return b
}

// Buffer sets an in-memory request body.
func (b *Builder) Buffer(data []byte) *Builder {
	b.body.Discard()
	b.body = Buffer(data)
	return b
}

// Text sets an in-memory text body and, unless a Content-Type header is
// already present at Build time, a default text/plain;charset=<charset>
// Content-Type (spec §4.A, §6).
func (b *Builder) Text(text string, charset mime.Charset) *Builder {
	b.body.Discard()
	b.body = Buffer([]byte(text))
	b.textCharset = charset
	return b
}

// JSON marshals v and sets it as the in-memory request body, along with a
// Content-Type: application/json header unless one is already present.
func (b *Builder) JSON(v any) *Builder {
	data, err := json.ConfigDefault.Marshal(v)
	if err != nil {
		b.err = clienterr.Wrap(clienterr.ProtocolError, "marshaling JSON request body", err)
		return b
	}

	b.body.Discard()
	b.body = Buffer(data)

	if !b.headers.Has("Content-Type") {
		b.headers.Add("Content-Type", mime.JSON)
	}

	return b
}

// StreamKnown sets a streamed body of declared length.
func (b *Builder) StreamKnown(source StreamSource, length int64) *Builder {
	b.body.Discard()
	b.body = StreamKnown(source, length)
	return b
}

// StreamUnknown sets a streamed body of unknown length, forcing chunked
// transfer framing.
func (b *Builder) StreamUnknown(source StreamSource) *Builder {
	b.body.Discard()
	b.body = StreamUnknown(source)
	return b
}

// BasicAuth sets Authorization: Basic <base64(user:pass)> using ISO-8859-1
// encoding, replacing any prior Authorization header regardless of the
// casing it was set with (spec §6; supplemented from RequestSpec.auth).
func (b *Builder) BasicAuth(user, pass string) *Builder {
	encoded, err := encodeBasicAuth(user, pass)
	if err != nil {
		b.err = clienterr.Wrap(clienterr.ProtocolError, "basic auth credentials not representable in ISO-8859-1", err)
		return b
	}

	setHeaderReplacingCI(b.headers, "Authorization", "Basic "+encoded)

	return b
}

func (b *Builder) ConnectTimeout(d time.Duration) *Builder {
	b.connectTimeout = d
	return b
}

func (b *Builder) ReadTimeout(d time.Duration) *Builder {
	b.readTimeout = d
	return b
}

func (b *Builder) MaxRedirects(n int) *Builder {
	b.maxRedirects = n
	return b
}

func (b *Builder) MaxContentLength(n int64) *Builder {
	b.maxContentLength = n
	return b
}

func (b *Builder) ResponseMaxChunkSize(n int) *Builder {
	b.responseMaxChunkSize = n
	return b
}

func (b *Builder) DecompressResponse(v bool) *Builder {
	b.decompressResponse = v
	return b
}

func (b *Builder) OnRedirect(fn RedirectDecision) *Builder {
	b.onRedirect = fn
	return b
}

func (b *Builder) TLSContext(cfg *tls.Config) *Builder {
	b.tlsContext = cfg
	return b
}

func (b *Builder) TLSParams(fn func(*tls.Config)) *Builder {
	b.tlsParams = fn
	return b
}

// Headers exposes the builder's header storage for advanced mutation
// (e.g. a caller-supplied header mutator, spec §6).
func (b *Builder) Headers() *kv.Storage {
	return b.headers
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}

	return d
}

func orDefaultInt(n, fallback int) int {
	if n == 0 {
		return fallback
	}

	return n
}

// encodeBasicAuth base64-encodes "user:pass" after transcoding it to
// ISO-8859-1, per spec §6's auth encoding rule.
func encodeBasicAuth(user, pass string) (string, error) {
	raw := user + ":" + pass

	latin1, err := charmap.ISO8859_1.NewEncoder().String(raw)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString([]byte(latin1)), nil
}

// setHeaderReplacingCI removes any pair whose key matches key
// case-insensitively, then adds (key, value).
func setHeaderReplacingCI(h *kv.Storage, key, value string) {
	existing := h.Expose()
	kept := make([]kv.Pair, 0, len(existing))

	for _, p := range existing {
		if !strings.EqualFold(p.Key, key) {
			kept = append(kept, p)
		}
	}

	h.Clear()
	for _, p := range kept {
		h.Add(p.Key, p.Value)
	}

	h.Add(key, value)
}

// charsetHeaderName renders a mime.Charset the way it appears in a
// Content-Type header value: "UTF-8" for UTF8, upper-cased otherwise.
func charsetHeaderName(c mime.Charset) string {
	if c == mime.UTF8 {
		return "UTF-8"
	}

	return strings.ToUpper(c)
}
