package httpx

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is an HTTP request as assembled by the Parser. Headers are keyed
// by lowercased, trimmed names; a duplicate header overwrites the earlier
// value. The derived fields are populated once the header section ends.
type Request struct {
	Method  Method
	URI     string
	Version string
	Headers map[string]string
	Body    []byte

	// Derived from headers when the blank line is reached.
	ContentLength    int
	HasContentLength bool
	Cookies          map[string]string
	Mime             MimeType
	HasMime          bool
}

func newRequest(method Method, uri, version string) *Request {
	return &Request{
		Method:  method,
		URI:     uri,
		Version: version,
		Headers: make(map[string]string),
	}
}

// postProcess derives content length, cookies and the body MIME type from
// the raw headers. Called exactly once, when the header section ends.
func (r *Request) postProcess() error {
	if v, ok := r.Headers["content-length"]; ok {
		n, err := strconv.ParseUint(v, 10, 63)
		if err != nil {
			return fmt.Errorf("invalid content-length %q: %w", v, err)
		}
		r.ContentLength = int(n)
		r.HasContentLength = true
	}

	if v, ok := r.Headers["cookie"]; ok {
		r.Cookies = make(map[string]string)
		for _, cookie := range strings.Split(v, ";") {
			name, value, found := strings.Cut(cookie, "=")
			if !found {
				continue
			}
			r.Cookies[strings.TrimSpace(name)] = value
		}
	}

	if v, ok := r.Headers["content-type"]; ok {
		token, _, _ := strings.Cut(v, ";")
		r.Mime = MimeFromToken(strings.TrimSpace(token))
		r.HasMime = true
	}

	return nil
}

// Cookie returns the named cookie value, or "" when absent.
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.Cookies[name]
	return v, ok
}

// BodyMime returns the request body MIME type, defaulting to
// application/octet-stream when no content-type header was sent.
func (r *Request) BodyMime() MimeType {
	if !r.HasMime {
		return MimeOctetStream
	}
	return r.Mime
}
