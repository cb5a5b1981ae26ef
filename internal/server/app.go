// Package server initializes and runs the main application server.
// It wires the persistence layer to the session and storage services,
// handles graceful shutdown, and starts the TCP server for object access.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/blobvault/blobvault/internal/logging"
	"github.com/blobvault/blobvault/internal/server/auth"
	"github.com/blobvault/blobvault/internal/server/config"
	"github.com/blobvault/blobvault/internal/server/httpd"
	"github.com/blobvault/blobvault/internal/server/storage"
	"github.com/blobvault/blobvault/internal/store"
)

// On-disk layout under the data root.
const (
	sessionDir  = "auth"
	metadataDir = "metadata"
	blobDir     = "storage"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	authService    *auth.Service
	storageService *storage.Service
}

func NewApp(c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	sessions := store.NewFileRecords(c.DataDir, sessionDir, func(s *auth.Session) string { return s.AccessKey })
	metadata := store.NewFileRecords(c.DataDir, metadataDir, func(m *storage.Metadata) string { return m.Key })

	var blobs store.Blobs
	if c.BlobBackend == config.BlobBackendS3 {
		b, err := store.NewS3Blobs(context.Background(), store.S3Config{
			User:     c.S3RootUser,
			Password: c.S3RootPassword,
			Bucket:   c.S3Bucket,
			Region:   c.S3Region,
			Endpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("blob backend init error: %w", err)
		}
		blobs = b
	} else {
		blobs = store.NewFileBlobs(c.DataDir, blobDir)
	}

	ss := storage.NewService(sessions, metadata, blobs, logger)
	as := auth.NewService(sessions, []byte(c.SecretKey), c.SessionIdleDuration, ss.OwnsObjects, logger)

	return &App{config: c, logger: logger, authService: as, storageService: ss}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	handler := httpd.NewHandler(app.authService, app.storageService, app.logger)
	s := httpd.NewServer(app.config.EndpointAddr, handler, app.authService, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

}
