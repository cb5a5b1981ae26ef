package httpd

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/blobvault/blobvault/internal/httpx"
	"github.com/blobvault/blobvault/internal/logging"
)

const readBufferSize = 1024

// conn owns one client socket for its whole lifetime: read until the
// parser is satisfied, answer once, stream the object body if any, close.
type conn struct {
	id      string
	socket  net.Conn
	handler *Handler
	logger  logging.Logger
}

func newConn(socket net.Conn, handler *Handler, logger logging.Logger) *conn {
	id := uuid.NewString()
	return &conn{
		id:      id,
		socket:  socket,
		handler: handler,
		logger:  logger.With("conn_id", id, "remote_addr", socket.RemoteAddr().String()),
	}
}

func (c *conn) run(ctx context.Context) {
	defer c.close(ctx)

	parser := httpx.NewParser()
	buffer := make([]byte, readBufferSize)

	for {
		n, err := c.socket.Read(buffer)
		if n > 0 {
			parser.Update(buffer[:n])
			if parser.Done() {
				break
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Debug(ctx, "end of stream")
			} else {
				c.logger.Warn(ctx, "read failed", "error", err.Error())
			}
			break
		}
	}

	res, streamKey := c.handler.Handle(ctx, parser)

	if _, err := c.socket.Write(res.Bytes()); err != nil {
		c.logger.Warn(ctx, "write failed", "error", err.Error())
		return
	}

	if streamKey == "" {
		return
	}

	stream, err := c.handler.Stream(ctx, streamKey)
	if err != nil {
		// The head already promised a body; nothing to do but drop the
		// connection short.
		c.logger.Warn(ctx, "stream open failed", "key", streamKey, "error", err.Error())
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			c.logger.Warn(ctx, "stream read failed", "key", streamKey, "error", err.Error())
			return
		}
		if _, err := c.socket.Write(chunk); err != nil {
			c.logger.Warn(ctx, "stream write failed", "error", err.Error())
			return
		}
	}
}

func (c *conn) close(ctx context.Context) {
	if tcp, ok := c.socket.(*net.TCPConn); ok {
		if err := tcp.CloseWrite(); err != nil {
			c.logger.Debug(ctx, "close write failed", "error", err.Error())
		}
	}
	if err := c.socket.Close(); err != nil {
		c.logger.Warn(ctx, "close failed", "error", err.Error())
	}
}
