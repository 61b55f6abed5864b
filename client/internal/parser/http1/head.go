package http1

import (
	"github.com/indigo-web/flux/http/proto"
	"github.com/indigo-web/flux/http/status"
	"github.com/indigo-web/flux/kv"
)

// Head is the raw result of parsing an HTTP/1.1 response's status line and
// headers, before any of the client's own semantics (informational-status
// Content-Length stripping, redirect classification) are applied. It has no
// dependency on the client package itself: the teacher's own version of this
// parser imported client.Response directly, which cannot work once the
// client package needs to import the parser to drive it. Keeping Head local
// and letting the caller translate it avoids that cycle.
type Head struct {
	Protocol proto.Proto
	Code     status.Code
	Status   status.Status
	Headers  *kv.Storage
}
