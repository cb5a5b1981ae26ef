// Package httpx models just enough of HTTP/1.1 for the server: request
// methods, MIME types, status reasons, an incremental request parser and a
// response builder. The transport underneath is a raw TCP stream, so the
// parser must cope with arbitrarily fragmented reads.
package httpx

import (
	"fmt"

	"github.com/blobvault/blobvault/internal/shared"
)

type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodConnect Method = "CONNECT"
	MethodTrace   Method = "TRACE"
	MethodPatch   Method = "PATCH"
	MethodList    Method = "LIST"
)

// ParseMethod matches the token against the fixed method set. Matching is
// case-sensitive and exact.
func ParseMethod(token string) (Method, error) {
	switch Method(token) {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodHead,
		MethodOptions, MethodConnect, MethodTrace, MethodPatch, MethodList:
		return Method(token), nil
	}
	return "", fmt.Errorf("%w: %q", shared.ErrorInvalidMethod, token)
}

type MimeType string

const (
	MimeTextPlain       MimeType = "text/plain"
	MimeTextHTML        MimeType = "text/html"
	MimeTextCSS         MimeType = "text/css"
	MimeTextJavascript  MimeType = "text/javascript"
	MimeImagePNG        MimeType = "image/png"
	MimeImageJPEG       MimeType = "image/jpeg"
	MimeImageGIF        MimeType = "image/gif"
	MimeImageWebp       MimeType = "image/webp"
	MimeImageSVG        MimeType = "image/svg+xml"
	MimeApplicationJSON MimeType = "application/json"
	MimeApplicationXML  MimeType = "application/xml"
	MimeOctetStream     MimeType = "application/octet-stream"
)

// MimeFromToken maps a content-type token onto the known MIME set. Unknown
// tokens fall back to application/octet-stream.
func MimeFromToken(token string) MimeType {
	switch MimeType(token) {
	case MimeTextPlain, MimeTextHTML, MimeTextCSS, MimeTextJavascript,
		MimeImagePNG, MimeImageJPEG, MimeImageGIF, MimeImageWebp,
		MimeImageSVG, MimeApplicationJSON, MimeApplicationXML:
		return MimeType(token)
	}
	return MimeOctetStream
}

func (m MimeType) String() string {
	return string(m)
}

// IsUTF8 reports whether a body of this type can be decoded as text.
func (m MimeType) IsUTF8() bool {
	switch m {
	case MimeTextPlain, MimeTextHTML, MimeTextCSS, MimeTextJavascript, MimeApplicationJSON:
		return true
	}
	return false
}

// StatusText returns the reason phrase for a status code, "Unknown" for
// anything unmapped.
func StatusText(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 101:
		return "Switching Protocols"
	case 102:
		return "Processing"

	case 200:
		return "OK"
	case 201:
		return "Created"
	case 202:
		return "Accepted"
	case 203:
		return "Non-authoritative Information"
	case 204:
		return "No Content"
	case 205:
		return "Reset Content"
	case 206:
		return "Partial Content"
	case 207:
		return "Multi-Status"

	case 300:
		return "Multiple Choices"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 303:
		return "See Other"
	case 304:
		return "Not Modified"

	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 402:
		return "Payment Required"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 418:
		return "I'm a teapot"

	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	}

	return "Unknown"
}
