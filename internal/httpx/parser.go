package httpx

import (
	"bytes"
	"strings"
)

const (
	crlf            = "\r\n"
	tokenSeparator  = " "
	headerSeparator = ": "
)

// Parser assembles a Request from a stream of byte chunks. Update may be
// called with arbitrarily small fragments, one byte at a time included;
// the parser never assumes a complete line is buffered.
//
// Once invalid, the parser stays invalid and further input is ignored.
type Parser struct {
	buffer []byte

	parsedRequestLine bool
	consumedHeaders   bool
	invalid           bool

	request *Request
}

func NewParser() *Parser {
	return &Parser{}
}

// Request returns the request built so far. Callers should check Invalid
// before using it; it is nil until a request line has been parsed.
func (p *Parser) Request() *Request {
	return p.request
}

// Update appends raw bytes and advances the state machine as far as the
// buffered data allows.
func (p *Parser) Update(data []byte) {
	if p.invalid {
		return
	}

	p.buffer = append(p.buffer, data...)

	for !p.consumedHeaders {
		line, ok := p.consumeLine()
		if !ok {
			break
		}

		switch {
		case !p.parsedRequestLine:
			p.parseRequestLine(line)
		case line == "":
			// Blank line: headers are complete.
			p.consumedHeaders = true
			if err := p.request.postProcess(); err != nil {
				p.invalid = true
			}
		default:
			p.parseHeaderLine(line)
		}

		if p.invalid {
			return
		}
	}

	if p.consumedHeaders {
		// Everything after the header section belongs to the body.
		p.request.Body = append(p.request.Body, p.buffer...)
		p.buffer = p.buffer[:0]
	}
}

// consumeLine removes the first CRLF-terminated line from the buffer,
// without its terminator. Returns false when no full line is buffered yet.
func (p *Parser) consumeLine() (string, bool) {
	index := bytes.Index(p.buffer, []byte(crlf))
	if index < 0 {
		return "", false
	}

	line := string(p.buffer[:index])
	p.buffer = p.buffer[index+len(crlf):]
	return line, true
}

func (p *Parser) parseRequestLine(line string) {
	tokens := strings.Split(line, tokenSeparator)
	if len(tokens) != 3 {
		p.invalid = true
		return
	}

	if !strings.HasPrefix(tokens[2], "HTTP/") {
		p.invalid = true
		return
	}

	method, err := ParseMethod(tokens[0])
	if err != nil {
		p.invalid = true
		return
	}

	p.request = newRequest(method, tokens[1], tokens[2])
	p.parsedRequestLine = true
}

func (p *Parser) parseHeaderLine(line string) {
	name, value, found := strings.Cut(line, headerSeparator)
	if !found {
		p.invalid = true
		return
	}

	name = strings.ToLower(strings.TrimSpace(name))
	p.request.Headers[name] = value
}

// Done reports whether reading can stop: the request is complete, or the
// stream is hopeless. With a declared content-length the body must have
// reached it; without one the request is complete when headers end.
func (p *Parser) Done() bool {
	if p.Invalid() {
		return true
	}

	if !p.consumedHeaders {
		return false
	}

	if p.request.HasContentLength {
		return len(p.request.Body) >= p.request.ContentLength
	}

	return true
}

// Invalid reports whether the stream violated the request grammar, or no
// request was ever started.
func (p *Parser) Invalid() bool {
	return p.invalid || p.request == nil
}
