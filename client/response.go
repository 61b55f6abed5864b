package client

import (
	"strings"

	json "github.com/json-iterator/go"

	"github.com/indigo-web/flux/http/mime"
	"github.com/indigo-web/flux/http/proto"
	"github.com/indigo-web/flux/http/status"
	"github.com/indigo-web/flux/internal/strutil"
	"github.com/indigo-web/flux/kv"
)

// ResponseHead is a response's status line and headers. Any Content-Length
// on an informational (1xx) or 204 response is stripped before it ever
// reaches a caller, since neither carries a body regardless of what the
// header claims.
type ResponseHead struct {
	Protocol proto.Proto
	Code     status.Code
	Status   status.Status
	Headers  *kv.Storage
}

// Charset extracts the charset parameter off the response's Content-Type
// header, if any (e.g. "text/html; charset=cp1251" -> "cp1251", true).
func (h ResponseHead) Charset() (mime.Charset, bool) {
	_, params := strutil.CutHeader(h.Headers.Value("Content-Type"))

	for key, value := range strutil.WalkKV(params) {
		if strings.EqualFold(key, "charset") {
			return strings.ToLower(value), true
		}
	}

	return "", false
}

func stripInformationalContentLength(head *ResponseHead) {
	if (head.Code >= 100 && head.Code < 200) || head.Code == status.NoContent {
		removeHeaderCI(head.Headers, "Content-Length")
	}
}

// removeHeaderCI drops every pair whose key matches key case-insensitively.
// kv.Storage has no delete operation, so this rebuilds the pair list
// through its public Expose/Clear/Add surface.
func removeHeaderCI(h *kv.Storage, key string) {
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
}

// StreamedResponse is the live handle delivered once a response head has
// been parsed. Exactly one of Subscribe or Discard is expected to be
// called; a caller that does neither still gets its buffered
// pre-subscription chunks released once the owning execution notices no
// subscriber ever attached.
type StreamedResponse struct {
	Head    ResponseHead
	handler *handler
	// maxContentLength carries the originating request's buffering bound
	// through to Client.Execute, which has no other way to recover it
	// once StreamedResponse alone has been handed back from a redirect
	// chain that may have changed it hop to hop.
	maxContentLength int64
}

// Subscribe attaches sink as the sole consumer of the response body and
// returns a Subscription for requesting more chunks or cancelling.
func (r StreamedResponse) Subscribe(sink Sink) Subscription {
	r.handler.attach(sink)
	return Subscription{h: r.handler}
}

// Discard drains and force-disposes the response without ever surfacing
// its body to a subscriber. Used internally when a redirect is chased.
func (r StreamedResponse) Discard() {
	r.handler.discard()
}

// JSON buffers the entire body and decodes it as JSON. It is a convenience
// built on top of Subscribe with unlimited demand, not a distinct code
// path in the handler.
func (r StreamedResponse) JSON(v any) error {
	data, err := collectAll(r)
	if err != nil {
		return err
	}

	return decodeJSON(data, v)
}

// ReceivedResponse is the fully-buffered artifact Client.Execute returns.
type ReceivedResponse struct {
	Head ResponseHead
	Body []byte
}

func (r ReceivedResponse) JSON(v any) error {
	return decodeJSON(r.Body, v)
}

// decodeJSON follows the same BorrowIterator/ReadVal/ReturnIterator
// sequence the teacher's http/body.go uses for request bodies.
func decodeJSON(data []byte, v any) error {
	iterator := json.ConfigDefault.BorrowIterator(data)
	iterator.ReadVal(v)
	err := iterator.Error
	json.ConfigDefault.ReturnIterator(iterator)

	return err
}
