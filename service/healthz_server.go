package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

const readHeaderTimeout = 10 * time.Second

// httpServer binds synchronously so that startup errors surface to the
// caller while serving happens in the background.
type httpServer struct {
	name     string
	server   *http.Server
	listener net.Listener
}

func newHTTPServer(name, addr string, handler http.Handler) httpServer {
	return httpServer{
		name: name,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

func (s *httpServer) listen() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	return nil
}

func (s *httpServer) serve() error {
	log.Info("starting "+s.name+" server", "addr", s.Addr())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr is the bound address, or the configured one before listening.
func (s *httpServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

func (s *httpServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthzServer struct {
	httpServer
}

func NewHealthzServer(addr string) *HealthzServer {
	h := &HealthzServer{}
	h.httpServer = newHTTPServer("healthz", addr, h.Handler())
	return h
}

// Handler serves /healthz with CORS enabled for any origin.
func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}
