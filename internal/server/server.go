// Package server exposes the tracker as a JSON API over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sysfr3ak/archive-sys/internal/config"
	"github.com/sysfr3ak/archive-sys/internal/photo"
	"gorm.io/gorm"
)

// Options holds the dependencies of the API.
type Options struct {
	DB     *gorm.DB
	Config *config.Config
	Photos *photo.Store // defaults to a store under Config.Storage
	Logger *slog.Logger
}

// Server serves the API routes.
type Server struct {
	db     *gorm.DB
	cfg    *config.Config
	photos *photo.Store
	log    *slog.Logger
}

// New validates opts and returns a Server.
func New(opts Options) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Default(); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
	}
	photos := opts.Photos
	if photos == nil {
		photos = photo.NewStore(opts.DB, cfg.Storage.UploadDir, cfg.Storage.MaxPerJob)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{db: opts.DB, cfg: cfg, photos: photos, log: logger}, nil
}

// Handler builds the gin router with all routes registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), s.accessLog())
	s.registerRoutes(router)
	return router
}

// StartOpts holds configuration for Start.
type StartOpts struct {
	Options
	Addr string // defaults to Config.Addr()
	Out  io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := New(opts.Options)
	if err != nil {
		return err
	}
	addr := opts.Addr
	if addr == "" {
		addr = s.cfg.Addr()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
