package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
)

// Server hosts the download API. There are deliberately no write or
// idle timeouts on the underlying http.Server: a streaming download
// response stays open for as long as the transfer runs.
type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, handler *Handler) *Server {
	mux := http.NewServeMux()
	handler.Register(mux)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	logger.Infof("Model download endpoint listening on %s", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
