// Package http implements the HTTP server of the daemon that exposes the
// prometheus metrics and a health check.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"golang.org/x/xerrors"
)

const shutdownTimeout = 10 * time.Second

type key int

const requestIDKey key = 0

// Server is an HTTP server with request logging. Handlers are registered
// before or after it starts.
type Server struct {
	sync.Mutex

	mux      *http.ServeMux
	server   *http.Server
	logger   zerolog.Logger
	addr     string
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a new server that will listen on the address. An empty
// address or a zero port picks a random free port.
func NewServer(addr string) *Server {
	logger := stxdapp.Logger.With().Str("role", "http server").Logger()

	mux := http.NewServeMux()

	return &Server{
		mux: mux,
		server: &http.Server{
			Handler:           withRequestID(logging(logger)(mux)),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		addr:   addr,
	}
}

// Start binds the address and serves the requests in the background.
func (s *Server) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.listener != nil {
		return xerrors.New("server already started")
	}

	addr := s.addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Errorf("failed to listen on '%s': %v", addr, err)
	}

	s.listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		err := s.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Err(err).Msg("server failed")
		}
	}()

	s.logger.Info().Stringer("addr", ln.Addr()).Msg("server is ready to handle requests")

	return nil
}

// Addr returns the address the server listens on, or nil if it is not
// started.
func (s *Server) Addr() net.Addr {
	s.Lock()
	defer s.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop shuts the server down gracefully. It does nothing if the server is not
// started.
func (s *Server) Stop() error {
	s.Lock()
	defer s.Unlock()

	if s.listener == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.server.SetKeepAlivesEnabled(false)

	err := s.server.Shutdown(ctx)
	if err != nil {
		return xerrors.Errorf("failed to shutdown: %v", err)
	}

	<-s.done
	s.listener = nil

	s.logger.Info().Msg("server stopped")

	return nil
}

// Handle registers the handler for the path.
func (s *Server) Handle(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}

// logging logs every request once it is served.
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			defer func() {
				requestID, ok := r.Context().Value(requestIDKey).(string)
				if !ok {
					requestID = "unknown"
				}

				logger.Debug().
					Str("request", requestID).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Dur("took", time.Since(start)).
					Msg("request served")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// withRequestID tags the request with the ID of the X-Request-Id header, or a
// new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = xid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
