package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/meigma/husk"
)

// Server serves archive content on a TCP listener.
//
// Follows a blocking lifecycle: Serve(ctx) binds the listener, signals
// Ready, and runs until the context is cancelled, then drains in-flight
// requests for up to ShutdownTimeout. The archive is read-only for the
// whole process lifetime, so request handlers share it without locks.
type Server struct {
	addr    string
	archive *husk.Archive
	router  *Router
	logger  *slog.Logger

	shutdownTimeout time.Duration

	// ready is closed after the listener is bound.
	ready chan struct{}

	// resolved is the listen address, available after ready is closed.
	resolved net.Addr
}

// Config configures a Server.
type Config struct {
	// Addr is the TCP listen address (e.g., ":8080"). Required.
	Addr string

	// Archive is the content source. Required.
	Archive *husk.Archive

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration

	// Logger is the structured logger. Nil discards logs.
	Logger *slog.Logger
}

// New creates a Server. Call Serve to start accepting connections.
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("serve: Addr is required")
	}
	if cfg.Archive == nil {
		return nil, errors.New("serve: Archive is required")
	}
	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:            cfg.Addr,
		archive:         cfg.Archive,
		router:          NewRouter(cfg.Archive.Index()),
		logger:          logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}, nil
}

// Ready returns a channel that is closed once the server is bound and
// accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready() is
// closed. Useful when the configured address uses port 0.
func (s *Server) Addr() net.Addr {
	return s.resolved
}

// Serve accepts connections until ctx is cancelled, then performs a
// graceful shutdown: the listener closes and active requests get up to
// ShutdownTimeout to complete.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.resolved = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.Handler(),

		// Slow or stalled clients are their own failure domain; these
		// bounds stop one from pinning a connection forever.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("listening", "address", s.resolved.String(), "entries", s.archive.Index().Len())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Handler returns the http.Handler serving archive content. Exposed so
// tests and embedders can mount it without a listener.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	d := s.router.Resolve(r.Method, r.URL.Path)

	switch d.Status {
	case http.StatusOK:
		s.serveContent(w, r, &d, start)
	case http.StatusMovedPermanently:
		w.Header().Set("Location", d.Location)
		w.WriteHeader(d.Status)
		s.logRequest(r, d.Status, 0, start)
	case http.StatusMethodNotAllowed:
		w.Header().Set("Allow", d.Allow)
		http.Error(w, "method not allowed", d.Status)
		s.logRequest(r, d.Status, 0, start)
	default:
		http.Error(w, "not found", d.Status)
		s.logRequest(r, d.Status, 0, start)
	}
}

// serveContent writes a 200 (or 304) response for a resolved entry.
func (s *Server) serveContent(w http.ResponseWriter, r *http.Request, d *Decision, start time.Time) {
	h := w.Header()
	h.Set("ETag", d.ETag)
	h.Set("Last-Modified", d.LastModified.UTC().Format(http.TimeFormat))

	if notModified(r, d) {
		w.WriteHeader(http.StatusNotModified)
		s.logRequest(r, http.StatusNotModified, 0, start)
		return
	}

	h.Set("Content-Type", d.ContentType)
	h.Set("Content-Length", fmt.Sprintf("%d", d.ContentLength))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		s.logRequest(r, http.StatusOK, 0, start)
		return
	}

	body := s.archive.OpenEntry(d.Entry)
	defer body.Close()

	// Prime the first chunk before committing the status line so a
	// source that has gone away still gets a well-formed 500.
	buf := make([]byte, 32*1024)
	first, err := body.Read(buf)
	if err != nil && err != io.EOF {
		s.logger.Error("open entry failed", "path", d.Entry.Path, "error", err)
		h.Del("Content-Length")
		h.Del("ETag")
		h.Del("Last-Modified")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		s.logRequest(r, http.StatusInternalServerError, 0, start)
		return
	}

	w.WriteHeader(http.StatusOK)
	n := int64(0)
	if first > 0 {
		wn, werr := w.Write(buf[:first])
		n += int64(wn)
		if werr != nil {
			s.logger.Error("body stream failed", "path", d.Entry.Path, "written", n, "error", werr)
			return
		}
	}
	if err != io.EOF {
		cn, cerr := io.CopyBuffer(w, body, buf)
		n += cn
		if cerr != nil {
			// The status line is already on the wire; all we can do is
			// cut the connection short and log why.
			s.logger.Error("body stream failed", "path", d.Entry.Path, "written", n, "error", cerr)
			return
		}
	}
	s.logRequest(r, http.StatusOK, n, start)
}

// notModified evaluates conditional headers against the entry's
// validators. If-None-Match wins over If-Modified-Since.
func notModified(r *http.Request, d *Decision) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		for _, candidate := range strings.Split(inm, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == d.ETag || candidate == "*" {
				return true
			}
		}
		return false
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		t, err := http.ParseTime(ims)
		if err == nil && !d.LastModified.Truncate(time.Second).After(t) {
			return true
		}
	}
	return false
}

func (s *Server) logRequest(r *http.Request, status int, bytes int64, start time.Time) {
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"bytes", bytes,
		"duration", time.Since(start),
	)
}
