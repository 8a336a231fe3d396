package rigsim

import (
	"context"
	"net/http"
)

func Route(sim *Sim) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", NewAcceptHandler(sim))
	mux.HandleFunc("GET /health", NewHealthHandler(sim))
	mux.HandleFunc("GET /frame", NewFrameHandler(sim))
	return mux
}

type Server struct {
	HTTP *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{HTTP: &http.Server{Addr: addr, Handler: handler}}
}

func (s *Server) Serve() error                       { return s.HTTP.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.HTTP.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.HTTP.Close() }
func (s *Server) Addr() string                       { return s.HTTP.Addr }
