package client

import (
	"github.com/indigo-web/flux/client/chunk"
	"github.com/indigo-web/flux/client/internal/connection"
	"github.com/indigo-web/flux/config"
	"github.com/indigo-web/flux/http/method"
)

// Client is the entry point of the streaming HTTP client core: a
// connection pool plus a set of defaults every request's Builder is
// seeded from (spec §2, §5). The zero value is not usable; construct one
// with New.
type Client struct {
	defaults config.Client
	manager  *connection.Manager
	pool     *chunk.Pool
}

// Option mutates a Client's defaults before it starts serving requests.
type Option func(*config.Client)

// WithDefaults replaces a Client's whole set of Builder-seeding defaults.
func WithDefaults(defaults config.Client) Option {
	return func(c *config.Client) { *c = defaults }
}

// New returns a Client seeded from config.DefaultClient, with any options
// applied on top, and its own connection pool and chunk pool.
func New(opts ...Option) *Client {
	defaults := config.DefaultClient()
	for _, opt := range opts {
		opt(&defaults)
	}

	maxChunk := defaults.ResponseMaxChunkSize
	if maxChunk <= 0 {
		maxChunk = 8192
	}

	return &Client{
		defaults: defaults,
		manager:  connection.NewManager(16),
		pool:     chunk.New(maxChunk, 64),
	}
}

// Stream builds a request against target with configurator and returns
// its StreamedResponse, chasing redirects per the client's defaults and
// the request's own OnRedirect decision (spec §4.F).
func (c *Client) Stream(target string, configurator Configurator) (StreamedResponse, error) {
	cfg, err := Build(target, c.defaults, configurator)
	if err != nil {
		return StreamedResponse{}, err
	}

	return c.run(cfg)
}

// Execute buffers the entire response body and returns it as a
// ReceivedResponse, bounded by the request's MaxContentLength.
func (c *Client) Execute(target string, configurator Configurator) (ReceivedResponse, error) {
	sr, err := c.Stream(target, configurator)
	if err != nil {
		return ReceivedResponse{}, err
	}

	body, err := collectAllBounded(sr, sr.maxContentLength)
	if err != nil {
		return ReceivedResponse{}, err
	}

	return ReceivedResponse{Head: sr.Head, Body: body}, nil
}

// Get is a convenience wrapper around Execute for a bodyless GET request.
func (c *Client) Get(target string, configurator Configurator) (ReceivedResponse, error) {
	return c.Execute(target, chainMethod(method.GET, configurator))
}

// Head is a convenience wrapper around Execute for a HEAD request.
func (c *Client) Head(target string, configurator Configurator) (ReceivedResponse, error) {
	return c.Execute(target, chainMethod(method.HEAD, configurator))
}

// Post is a convenience wrapper around Execute for a POST request with an
// in-memory body.
func (c *Client) Post(target string, body []byte, configurator Configurator) (ReceivedResponse, error) {
	return c.Execute(target, chainPostBody(body, configurator))
}

// CloseIdleConnections discards every idle pooled connection. Connections
// currently serving a request are unaffected; they are closed or returned
// to the pool as their own responses complete.
func (c *Client) CloseIdleConnections() {
	c.manager.CloseIdle()
}

func chainMethod(m method.Method, configurator Configurator) Configurator {
	return func(b *Builder) error {
		b.Method(m)
		if configurator != nil {
			return configurator(b)
		}

		return nil
	}
}

func chainPostBody(body []byte, configurator Configurator) Configurator {
	return func(b *Builder) error {
		b.Method(method.POST).Buffer(body)
		if configurator != nil {
			return configurator(b)
		}

		return nil
	}
}

// run drives one request through its redirect chain (spec §4.F), starting
// with cfg and stopping either at a non-redirect response, at
// max_redirects, or when OnRedirect aborts the chase.
func (c *Client) run(cfg RequestConfig) (StreamedResponse, error) {
	current := cfg
	hops := 0

	for {
		act := newAction(current, c.manager, c.pool)

		sr, err := act.execute()
		if err != nil {
			return StreamedResponse{}, err
		}

		if !isRedirectStatus(sr.Head.Code) || hops >= current.MaxRedirects {
			return sr, nil
		}

		next, ok, perr := planRedirect(current, sr)
		if perr != nil {
			sr.Discard()
			return StreamedResponse{}, perr
		}

		if !ok {
			return sr, nil
		}

		sr.Discard()
		hops++
		current = next
	}
}
