// Package server exposes the grading service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/abhisek/gradeproxy/internal/config"
	"github.com/abhisek/gradeproxy/internal/grading"
)

// Options configures a Server.
type Options struct {
	HTTP config.HTTPConfig

	// Provider is the configured LLM provider name, reported by /health.
	Provider string

	// Version is the build version, reported by /health.
	Version string

	Logger *zap.Logger
}

// Server is the HTTP front end of a grading.Service.
type Server struct {
	svc    *grading.Service
	opts   Options
	logger *zap.Logger
	engine *gin.Engine
}

// New builds the gin engine and registers every route.
func New(svc *grading.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{svc: svc, opts: opts, logger: logger}

	r := gin.New()
	r.Use(requestID(), accessLog(logger), recovery(logger), corsFunc())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	})
	s.routes(r)

	s.engine = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on the configured address until ctx is cancelled, then
// drains in-flight requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.HTTP.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.opts.HTTP.ReadHeaderTimeout,
		ReadTimeout:       s.opts.HTTP.ReadTimeout,
		WriteTimeout:      s.opts.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr), zap.String("model", s.svc.ModelID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.Duration("timeout", s.opts.HTTP.ShutdownTimeout))
	shutdownCtx := context.Background()
	if s.opts.HTTP.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.opts.HTTP.ShutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// NormalizeVersion returns v in canonical semver form ("1.2" becomes
// "v1.2.0"). Non-semver strings such as "(devel)" are returned unchanged.
func NormalizeVersion(v string) string {
	candidate := v
	if !strings.HasPrefix(candidate, "v") {
		candidate = "v" + candidate
	}
	if !semver.IsValid(candidate) {
		return v
	}
	return semver.Canonical(candidate)
}
