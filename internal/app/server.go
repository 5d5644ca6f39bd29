package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wraps the HTTP server for graceful lifecycle.
type Server struct {
	Engine *gin.Engine
	Addr   string
	Logger *zap.Logger
	// Ready, when set, receives the bound address once listening.
	Ready chan<- string
}

// Run starts the server with graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	if s.Engine == nil {
		return fmt.Errorf("engine not configured")
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.Logger != nil {
		s.Logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	}
	if s.Ready != nil {
		s.Ready <- ln.Addr().String()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
