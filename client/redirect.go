package client

import (
	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/http/method"
	"github.com/indigo-web/flux/http/status"
)

// isRedirectStatus reports whether code is one of the five redirect
// statuses the controller understands (§4.F). 306 is permanently unused
// and never matches.
func isRedirectStatus(code status.Code) bool {
	switch code {
	case status.MovedPermanently, status.Found, status.SeeOther,
		status.TemporaryRedirect, status.PermanentRedirect:
		return true
	default:
		return false
	}
}

// planRedirect resolves the next hop's RequestConfig from current and the
// response that triggered it, applying the method/body downgrade policy
// (§4.F step 1) and consulting current.OnRedirect (step 2). ok is false
// when either no Location header is present or OnRedirect returns nil,
// either of which aborts the chain and surfaces sr as the final response.
func planRedirect(current RequestConfig, sr StreamedResponse) (next RequestConfig, ok bool, err error) {
	location := sr.Head.Headers.Value("Location")
	if location == "" {
		return RequestConfig{}, false, nil
	}

	target, err := current.Target.Parse(location)
	if err != nil {
		return RequestConfig{}, false, clienterr.Wrap(clienterr.BadRedirect, "malformed Location header", err)
	}

	newMethod, dropBody := redirectMethodPolicy(current.Method, sr.Head.Code)

	if !dropBody && current.Body.Kind() == ContentStream {
		source, hasSource := current.Body.Source()
		if hasSource && !source.Restartable() {
			return RequestConfig{}, false, clienterr.New(clienterr.ProtocolError,
				"307/308 redirect requires replaying a non-restartable request body")
		}
	}

	var decision Configurator
	if current.OnRedirect != nil {
		decision = current.OnRedirect(sr.Head)
		if decision == nil {
			return RequestConfig{}, false, nil
		}
	}

	base := &Builder{
		target:               target,
		method:               newMethod,
		headers:              current.Headers.Clone(),
		connectTimeout:       current.ConnectTimeout,
		readTimeout:          current.ReadTimeout,
		maxRedirects:         current.MaxRedirects,
		maxContentLength:     current.MaxContentLength,
		responseMaxChunkSize: current.ResponseMaxChunkSize,
		decompressResponse:   current.DecompressResponse,
		onRedirect:           current.OnRedirect,
		tlsContext:           current.TLSContext,
		tlsParams:            current.TLSParams,
	}

	// The cloned headers still carry the previous hop's Host; a redirect
	// can cross origins, so Host must track the new target regardless of
	// whether it changed.
	setHeaderReplacingCI(base.headers, "Host", target.Host)

	if dropBody {
		current.Body.Discard()
		base.body = Empty()
		removeHeaderCI(base.headers, "Content-Length")
		removeHeaderCI(base.headers, "Transfer-Encoding")
		removeHeaderCI(base.headers, "Content-Type")
	} else {
		base.body = current.Body
	}

	if decision != nil {
		if derr := decision(base); derr != nil {
			base.body.Discard()
			return RequestConfig{}, false, derr
		}
	}

	next = RequestConfig{
		Target:               base.target,
		Method:               base.method,
		Headers:              base.headers,
		Body:                 base.body,
		ConnectTimeout:       base.connectTimeout,
		ReadTimeout:          base.readTimeout,
		MaxRedirects:         base.maxRedirects,
		MaxContentLength:     base.maxContentLength,
		ResponseMaxChunkSize: base.responseMaxChunkSize,
		DecompressResponse:   base.decompressResponse,
		OnRedirect:           base.onRedirect,
		TLSContext:           base.tlsContext,
		TLSParams:            base.tlsParams,
	}

	return next, true, nil
}

// redirectMethodPolicy implements RFC 9110 §15.4's redirect method
// downgrade rules: 301/302 downgrade a non-GET/HEAD method to GET and
// drop the body (historical browser behavior, not the letter of the
// RFC, but what every HTTP client actually does); 303 always downgrades
// to GET; 307/308 preserve method and body verbatim.
func redirectMethodPolicy(current method.Method, code status.Code) (next method.Method, dropBody bool) {
	switch code {
	case status.SeeOther:
		return method.GET, true
	case status.MovedPermanently, status.Found:
		if current == method.GET || current == method.HEAD {
			return current, false
		}

		return method.GET, true
	default: // TemporaryRedirect, PermanentRedirect
		return current, false
	}
}
