package httpd

import (
	"context"
	"net"

	"github.com/blobvault/blobvault/internal/logging"
	"github.com/blobvault/blobvault/internal/server/auth"
)

// acceptedBacklog bounds the queue of sweep triggers between the accept
// loop and the manager loop.
const acceptedBacklog = 100

// Server accepts TCP connections and hands each one to its own goroutine.
// Every accepted connection also notifies the manager loop, which sweeps
// idle sessions.
type Server struct {
	address string
	handler *Handler
	auth    *auth.Service
	logger  logging.Logger
}

func NewServer(address string, handler *Handler, authSvc *auth.Service, logger logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		auth:    authSvc,
		logger:  logger.With("module", "httpd"),
	}
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	accepted := make(chan string, acceptedBacklog)
	go s.managerLoop(ctx, accepted)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping server...")
		listen.Close()
	}()

	s.logger.Info(ctx, "Starting server", "address", s.address)

	// starts accepting incoming connections
	for {
		socket, err := listen.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.logger.Warn(ctx, "accept failed", "error", err.Error())
			continue
		}

		c := newConn(socket, s.handler, s.logger)
		go c.run(ctx)

		select {
		case accepted <- c.id:
		default:
			// Backlog full: skip this sweep trigger rather than stall
			// the accept loop.
		}
	}
}

// managerLoop sweeps idle sessions every time a connection is accepted.
func (s *Server) managerLoop(ctx context.Context, accepted <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-accepted:
			s.logger.Debug(ctx, "connection accepted", "conn_id", id)
			s.auth.Reap(ctx)
		}
	}
}
