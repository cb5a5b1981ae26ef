package httpx

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// Response accumulates a status, headers and a body, and serializes them
// to wire bytes. A set-cookie header is only emitted when the response has
// been marked authentication-relevant; that is how session cookies are
// restricted to responses that actually needed authentication context.
type Response struct {
	requiredAuthentication bool

	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func NewResponse(statusCode int) *Response {
	return &Response{
		StatusCode: statusCode,
		Headers:    make(map[string]string),
	}
}

// MarkRequiredAuthentication flags the response as one that needed
// authentication context, permitting set-cookie to be serialized.
func (r *Response) MarkRequiredAuthentication() {
	r.requiredAuthentication = true
}

func (r *Response) SetStatusCode(statusCode int) {
	r.StatusCode = statusCode
}

func (r *Response) SetHeader(name, value string) {
	r.Headers[name] = value
}

// SetCookie stores a name=value pair under the set-cookie header,
// optionally with the HttpOnly attribute.
func (r *Response) SetCookie(name, value string, httpOnly bool) {
	cookie := name + "=" + value
	if httpOnly {
		cookie += "; HttpOnly"
	}
	r.Headers["set-cookie"] = cookie
}

// SetBody installs the body and sets the content-length and content-type
// headers accordingly.
func (r *Response) SetBody(body []byte, mime MimeType) {
	r.SetHeader("content-length", strconv.Itoa(len(body)))
	r.SetHeader("content-type", mime.String())
	r.Body = body
}

// SetBodyGzip compresses the body and installs it with a matching
// content-encoding header. Meant for generated bodies (listings, errors),
// not for streamed blobs.
func (r *Response) SetBodyGzip(body []byte, mime MimeType) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("gzip body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gzip body: %w", err)
	}

	r.SetBody(buf.Bytes(), mime)
	r.SetHeader("content-encoding", "gzip")
	return nil
}

// Bytes serializes the status line, headers, blank line and body.
func (r *Response) Bytes() []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "HTTP/1.1 %d %s%s", r.StatusCode, StatusText(r.StatusCode), crlf)

	for name, value := range r.Headers {
		if name == "set-cookie" && !r.requiredAuthentication {
			continue
		}
		fmt.Fprintf(&out, "%s: %s%s", name, value, crlf)
	}

	out.WriteString(crlf)
	out.Write(r.Body)

	return out.Bytes()
}
