package config

import "time"

// Client holds the defaults a Builder is seeded with before a user
// configurator runs. Mirrors the Default/Maximal split used throughout
// Config, except here both the request-level default and the hard ceiling
// collapse into a single value per knob, since the client exposes these
// directly to callers rather than deriving them from a parser's internal
// bookkeeping.
type Client struct {
	// ConnectTimeout bounds how long acquiring and handshaking a transport
	// may take before a request attempt fails with ConnectTimeout.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the gap between any two inbound bytes of a single
	// attempt. It resets on every byte read from the wire.
	ReadTimeout time.Duration
	// MaxContentLength is the maximum number of bytes a buffered response
	// (Client.Execute) will accumulate before failing with
	// MaxContentLengthExceeded. -1 means unbounded.
	MaxContentLength int64
	// ResponseMaxChunkSize is the largest slice of body bytes delivered to
	// a subscriber (or accumulated into a buffered response) in one piece.
	ResponseMaxChunkSize int
	// MaxRedirects bounds how many redirect hops Client.run will follow
	// before surfacing the final 3xx response as-is.
	MaxRedirects int
	// DecompressResponse enables automatic insertion of the decompression
	// stage when the response declares an understood Content-Encoding.
	DecompressResponse bool
}

// DefaultClient returns the client-wide defaults a Builder falls back to
// for any knob the caller's configurator leaves untouched.
func DefaultClient() Client {
	return Client{
		ConnectTimeout:       30 * time.Second,
		ReadTimeout:          30 * time.Second,
		MaxContentLength:     -1,
		ResponseMaxChunkSize: 8192,
		MaxRedirects:         10,
		DecompressResponse:   true,
	}
}
