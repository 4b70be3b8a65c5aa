// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultShutdownTimeout   = 5 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// ErrNotADirectory is returned when the served path is not a directory.
var ErrNotADirectory = errors.New("not a directory")

// Server serves the files of Dir.
type Server struct {
	Dir string
	// Port 0 picks a free port.
	Port int
	// ShutdownTimeout bounds graceful shutdown. Zero means 5s.
	ShutdownTimeout time.Duration
}

// Run serves until ctx is canceled, then shuts down gracefully. ready, if
// set, is called with the bound address once the listener is open.
func (s *Server) Run(ctx context.Context, ready func(addr string)) error {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return fmt.Errorf("serve %s: %w", s.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("serve %s: %w", s.Dir, ErrNotADirectory)
	}

	addr := fmt.Sprintf(":%d", s.Port)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           Handler(s.Dir),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	slog.Info("serving", "dir", s.Dir, "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Handler serves dir and logs each request at debug level.
func Handler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("request", "method", r.Method, "path", r.URL.Path)
		files.ServeHTTP(w, r)
	})
}
