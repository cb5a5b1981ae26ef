// Package httpd serves the object store over raw TCP: an accept loop, a
// per-connection read loop feeding the incremental request parser, and a
// request handler that routes methods onto the storage engine.
package httpd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/blobvault/blobvault/internal/httpx"
	"github.com/blobvault/blobvault/internal/logging"
	"github.com/blobvault/blobvault/internal/server/auth"
	"github.com/blobvault/blobvault/internal/server/storage"
	"github.com/blobvault/blobvault/internal/store"
)

// authCookie is the cookie carrying the signed session token.
const authCookie = "authorization"

// Handler turns one parsed request into one response. It owns session
// resolution (including issuing fresh anonymous sessions) and dispatches
// storage methods.
type Handler struct {
	auth    *auth.Service
	storage *storage.Service
	logger  logging.Logger
}

func NewHandler(authSvc *auth.Service, storageSvc *storage.Service, logger logging.Logger) *Handler {
	return &Handler{
		auth:    authSvc,
		storage: storageSvc,
		logger:  logger.With("module", "handler"),
	}
}

// Handle produces the response for a finished parse. The second return is
// the key of an object body to stream to the client after the response
// head, or "" when the response carries its own body.
func (h *Handler) Handle(ctx context.Context, p *httpx.Parser) (*httpx.Response, string) {
	res := httpx.NewResponse(200)

	if p.Invalid() {
		res.SetStatusCode(400)
		res.SetBody([]byte("Invalid HTTP Request"), httpx.MimeTextPlain)
		return res, ""
	}

	req := p.Request()

	var sess *auth.Session
	if token, ok := req.Cookie(authCookie); ok {
		resolved, err := h.auth.Resolve(ctx, token)
		if err != nil {
			res.SetStatusCode(400)
			res.SetBody([]byte("Invalid Authorization Token"), httpx.MimeTextPlain)
			return res, ""
		}
		sess = resolved
	}

	// No usable session: start an anonymous one and hand its token back.
	if sess == nil {
		fresh, err := h.auth.Issue(ctx)
		if err != nil {
			h.logger.Error(ctx, "failed to issue session", "error", err.Error())
			res.SetStatusCode(503)
			res.SetBody([]byte("Internal Server Error"), httpx.MimeTextPlain)
			return res, ""
		}

		token, err := h.auth.Sign(fresh)
		if err != nil {
			h.logger.Error(ctx, "failed to sign session token", "error", err.Error())
			res.SetStatusCode(503)
			res.SetBody([]byte("Internal Server Error"), httpx.MimeTextPlain)
			return res, ""
		}

		res.SetCookie(authCookie, token, true)
		sess = fresh
	}

	return res, h.handleStorage(ctx, req, res, sess)
}

// Stream opens the blob behind a key for chunked transmission.
func (h *Handler) Stream(ctx context.Context, key string) (store.ChunkStream, error) {
	return h.storage.StreamObject(ctx, key)
}

// handleStorage routes the request onto the storage engine and fills in
// the response. Paths that answer early skip the session's recency touch.
func (h *Handler) handleStorage(ctx context.Context, req *httpx.Request, res *httpx.Response, sess *auth.Session) string {
	key := strings.TrimLeft(req.URI, "/")

	if key == "" && req.Method != httpx.MethodList && req.Method != httpx.MethodTrace {
		res.SetStatusCode(400)
		res.SetBody([]byte("Bad request"), httpx.MimeTextPlain)
		return ""
	}

	var streamKey string

	switch req.Method {
	case httpx.MethodGet:
		obj := h.storage.GetObject(ctx, sess, key, false)
		if obj == nil {
			// Absent and unreadable answer identically.
			res.SetStatusCode(404)
			res.SetBody([]byte("Not found / Forbidden"), httpx.MimeTextPlain)
			break
		}

		if obj.Metadata.ReadableBy != auth.LevelPublic {
			res.MarkRequiredAuthentication()
		}

		lastModified := strconv.FormatInt(obj.Metadata.LastModified, 10)

		if v, ok := req.Headers["if-none-match"]; ok && v == obj.Metadata.ETag {
			res.SetStatusCode(304)
			res.SetBody([]byte("Not modified"), httpx.MimeTextPlain)
			return ""
		}

		if v, ok := req.Headers["if-modified-since"]; ok && v == lastModified {
			res.SetStatusCode(304)
			res.SetBody([]byte("Not modified"), httpx.MimeTextPlain)
			return ""
		}

		if req.Headers["accept"] == httpx.MimeOctetStream.String() {
			res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Metadata.Name))
		}

		size, err := h.storage.ObjectSize(ctx, key)
		if err != nil {
			h.logger.Warn(ctx, "metadata present but blob unsized", "key", key, "error", err.Error())
			res.SetStatusCode(404)
			res.SetBody([]byte("Not found / Forbidden"), httpx.MimeTextPlain)
			break
		}

		res.SetStatusCode(200)
		res.SetHeader("last-modified", lastModified)
		res.SetHeader("etag", obj.Metadata.ETag)
		res.SetHeader("content-length", strconv.FormatInt(size, 10))
		res.SetHeader("content-type", obj.Metadata.MimeType)

		streamKey = key

	case httpx.MethodPut, httpx.MethodPost:
		res.MarkRequiredAuthentication()

		// Public by default; the uploader narrows visibility explicitly.
		readableBy := auth.LevelPublic
		switch req.Headers["x-readable-by"] {
		case "Owner":
			readableBy = auth.LevelOwner
		case "Read":
			readableBy = auth.LevelRead
		case "Public":
			readableBy = auth.LevelPublic
		}

		if readableBy != auth.LevelPublic && sess.AccessLevel < auth.LevelReadWrite {
			res.SetStatusCode(403)
			res.SetBody([]byte("Forbidden to write non public files"), httpx.MimeTextPlain)
			return ""
		}

		if err := h.storage.PutObject(ctx, sess, key, req.Body, req.BodyMime().String(), readableBy); err != nil {
			res.SetStatusCode(400)
			res.SetBody([]byte("Failed to save"), httpx.MimeTextPlain)
		} else {
			res.SetStatusCode(200)
		}

	case httpx.MethodDelete:
		res.MarkRequiredAuthentication()

		if sess.AccessLevel < auth.LevelReadWrite {
			res.SetStatusCode(403)
			res.SetBody([]byte("Forbidden"), httpx.MimeTextPlain)
			return ""
		}

		if err := h.storage.DeleteObject(ctx, sess, key); err != nil {
			res.SetStatusCode(400)
			res.SetBody([]byte("Failed to delete"), httpx.MimeTextPlain)
		} else {
			res.SetStatusCode(200)
		}

	case httpx.MethodHead:
		obj := h.storage.GetObject(ctx, sess, key, false)
		if obj == nil {
			res.SetStatusCode(404)
			res.SetBody([]byte("Not Found"), httpx.MimeTextPlain)
			break
		}

		if obj.Metadata.ReadableBy != auth.LevelPublic {
			res.MarkRequiredAuthentication()
		}

		res.SetStatusCode(200)
		res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Metadata.Name))
		res.SetHeader("Last-Modified", strconv.FormatInt(obj.Metadata.LastModified, 10))
		res.SetHeader("Etag", obj.Metadata.ETag)
		res.SetHeader("Content-Type", obj.Metadata.MimeType)
		res.SetHeader("Content-Length", strconv.FormatInt(obj.Metadata.Size, 10))

	case httpx.MethodList, httpx.MethodTrace:
		res.MarkRequiredAuthentication()

		objects, err := h.storage.ListObjects(ctx, sess)
		if err != nil {
			h.logger.Error(ctx, "listing failed", "error", err.Error())
			res.SetStatusCode(500)
			res.SetBody([]byte("Internal Server Error"), httpx.MimeTextPlain)
			break
		}
		if objects == nil {
			objects = []*storage.Metadata{}
		}

		body, err := json.Marshal(objects)
		if err != nil {
			h.logger.Error(ctx, "listing failed", "error", err.Error())
			res.SetStatusCode(500)
			res.SetBody([]byte("Internal Server Error"), httpx.MimeTextPlain)
			break
		}

		res.SetStatusCode(200)
		if strings.Contains(req.Headers["accept-encoding"], "gzip") {
			if err := res.SetBodyGzip(body, httpx.MimeApplicationJSON); err != nil {
				res.SetBody(body, httpx.MimeApplicationJSON)
			}
		} else {
			res.SetBody(body, httpx.MimeApplicationJSON)
		}

	default:
		// Unroutable but well-formed methods answer the prepared 200.
	}

	h.auth.Touch(ctx, sess)
	return streamKey
}
