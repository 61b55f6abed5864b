package http1

import (
	"bytes"

	"github.com/indigo-web/flux/client/clienterr"
	"github.com/indigo-web/flux/client/internal/parser"
	"github.com/indigo-web/flux/http/proto"
	"github.com/indigo-web/flux/http/status"
	"github.com/indigo-web/flux/kv"
	"github.com/indigo-web/utils/buffer"
	"github.com/indigo-web/utils/uf"
)

var _ parser.Parser = new(Parser)

type parserState int

const (
	eProto parserState = iota + 1
	eCode
	eStatus
	eHeaderKey
	eHeaderKeyCR
	eHeaderColon
	eHeaderValue
)

// Parser parses an HTTP/1.1 response status line and headers out of
// arbitrarily-fragmented reads, resuming exactly where it left off across
// Parse calls via a goto-driven state machine, the same shape the teacher
// uses for its request-line/header parsing.
type Parser struct {
	state        parserState
	head         Head
	respLineBuff buffer.Buffer[byte]
	headersBuff  buffer.Buffer[byte]
	headerKey    string
}

func NewParser(respLineBuff, headersBuff buffer.Buffer[byte]) *Parser {
	return &Parser{
		state:        eProto,
		respLineBuff: respLineBuff,
		headersBuff:  headersBuff,
	}
}

// Init resets p to parse a new response into headers.
func (p *Parser) Init(headers *kv.Storage) {
	p.head = Head{Headers: headers}
}

func (p *Parser) Parse(data []byte) (headersCompleted bool, rest []byte, err error) {
	switch p.state {
	case eProto:
		goto proto
	case eCode:
		goto code
	case eStatus:
		goto status_
	case eHeaderKey:
		goto headerKey
	case eHeaderKeyCR:
		goto headerKeyCR
	case eHeaderColon:
		goto headerColon
	case eHeaderValue:
		goto headerValue
	default:
		panic("BUG: response parser: unknown state")
	}

proto:
	{
		sp := bytes.IndexByte(data, ' ')
		if sp == -1 {
			if !p.respLineBuff.Append(data...) {
				return false, nil, clienterr.New(clienterr.ProtocolError, "response line too long")
			}

			return false, nil, nil
		}

		if !p.respLineBuff.Append(data[:sp]...) {
			return false, nil, clienterr.New(clienterr.ProtocolError, "response line too long")
		}

		p.head.Protocol = proto.FromBytes(p.respLineBuff.Finish())
		if p.head.Protocol == proto.Unknown {
			return false, nil, clienterr.New(clienterr.ProtocolError, "unsupported HTTP version")
		}

		data = data[sp+1:]
		p.state = eCode
		goto code
	}

code:
	for i := 0; i < len(data); i++ {
		if data[i] == ' ' {
			data = data[i+1:]
			p.state = eStatus
			goto status_
		}

		if data[i] < '0' || data[i] > '9' {
			return false, nil, clienterr.New(clienterr.ProtocolError, "malformed status code")
		}

		p.head.Code = status.Code(int(p.head.Code)*10 + int(data[i]-'0'))
	}

	return false, nil, nil

status_:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.respLineBuff.Append(data...) {
				return false, nil, clienterr.New(clienterr.ProtocolError, "response line too long")
			}

			return false, nil, nil
		}

		if !p.respLineBuff.Append(data[:lf]...) {
			return false, nil, clienterr.New(clienterr.ProtocolError, "response line too long")
		}

		p.head.Status = status.Status(uf.B2S(rstripCR(p.respLineBuff.Finish())))
		data = data[lf+1:]
		p.state = eHeaderKey
		goto headerKey
	}

headerKey:
	if len(data) == 0 {
		return false, nil, nil
	}

	switch data[0] {
	case '\r':
		data = data[1:]
		p.state = eHeaderKeyCR
		goto headerKeyCR
	case '\n':
		data = data[1:]
		goto exitSuccess
	}

	{
		colon := bytes.IndexByte(data, ':')
		if colon == -1 {
			if !p.headersBuff.Append(data...) {
				return false, nil, clienterr.New(clienterr.ProtocolError, "header name too long")
			}

			return false, nil, nil
		}

		if !p.headersBuff.Append(data[:colon]...) {
			return false, nil, clienterr.New(clienterr.ProtocolError, "header name too long")
		}

		p.headerKey = string(p.headersBuff.Finish())
		data = data[colon+1:]
		p.state = eHeaderColon
		goto headerColon
	}

headerKeyCR:
	if len(data) == 0 {
		return false, nil, nil
	}

	if data[0] != '\n' {
		return true, nil, clienterr.New(clienterr.ProtocolError, "malformed line ending")
	}

	data = data[1:]
	goto exitSuccess

headerColon:
	for i := 0; i < len(data); i++ {
		if data[i] != ' ' {
			data = data[i:]
			p.state = eHeaderValue
			goto headerValue
		}
	}

	return false, nil, nil

headerValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.headersBuff.Append(data...) {
				return false, nil, clienterr.New(clienterr.ProtocolError, "header value too long")
			}

			return false, nil, nil
		}

		if !p.headersBuff.Append(data[:lf]...) {
			return false, nil, clienterr.New(clienterr.ProtocolError, "header value too long")
		}

		p.head.Headers.Add(p.headerKey, string(rstripCR(p.headersBuff.Finish())))
		data = data[lf+1:]
		p.state = eHeaderKey
		goto headerKey
	}

exitSuccess:
	rest = data
	p.release()

	return true, rest, nil
}

// Head returns the parsed head. Only valid after Parse has reported
// headersCompleted.
func (p *Parser) Head() Head {
	return p.head
}

func (p *Parser) release() {
	p.state = eProto
	p.respLineBuff.Clear()
	p.headersBuff.Clear()
}

func rstripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		b = b[:len(b)-1]
	}

	return b
}
