package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shouni/promptart-kit/pkg/logging"
)

// Server は http.Server をラップし、シグナルによる graceful shutdown を提供します。
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		log: log,
	}
}

// Run はサーバーを起動し、SIGINT / SIGTERM を受けるまでブロックします。
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("server is ready to handle requests", slog.String("addr", s.httpServer.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		return s.Shutdown()
	}
}

// Shutdown は処理中のリクエストを待ってからサーバーを停止します。
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown failed", logging.Err(err))
		return err
	}
	s.log.Info("server gracefully stopped")
	return nil
}
