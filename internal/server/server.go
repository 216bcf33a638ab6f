package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sinamoghaddas/hpilo-exporter/internal/cache"
	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo"
	"github.com/sinamoghaddas/hpilo-exporter/internal/metrics"
)

const (
	// readHeaderTimeout protects against clients that never finish sending
	// request headers.
	readHeaderTimeout = 10 * time.Second

	// endpointPlaceholder is the marker in the info page that gets replaced
	// with the metrics endpoint path.
	endpointPlaceholder = "{{.Endpoint}}"
)

// ShutdownTimeout bounds how long in-flight requests may take to finish
// once the server context is cancelled.
const ShutdownTimeout = 5 * time.Second

// Query parameters and their environment fallbacks.
const (
	paramHost     = "ilo_host"
	paramPort     = "ilo_port"
	paramUser     = "ilo_user"
	paramPassword = "ilo_password"
	paramCached   = "ilo_cached"

	envHost     = "ILO_HOST"
	envPort     = "ILO_PORT"
	envUser     = "ILO_USER"
	envPassword = "ILO_PASSWORD"
	envCached   = "ILO_CACHED"
)

var (
	errMissingParam = errors.New("missing parameter")
	errInvalidPort  = errors.New("port must be an integer between 1 and 65535")
)

// ConfigError reports a request whose target parameters are missing or
// invalid. Requests that fail this way never reach the coordinator.
type ConfigError struct {
	Param string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Param, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Getter resolves a target to an encoded metrics payload.
// [*cache.Coordinator] implements it.
type Getter interface {
	Get(ctx context.Context, target ilo.Target, mode cache.Mode) ([]byte, error)
}

// Config holds the listener and routing settings for a [Server].
type Config struct {
	// Address is the interface to bind. Empty binds all interfaces.
	Address string

	// Port is the TCP port. Zero asks the OS for a free port.
	Port int

	// Endpoint is the metrics path, e.g. "/metrics".
	Endpoint string

	// TelemetryPath serves Telemetry when both are set.
	TelemetryPath string
	Telemetry     http.Handler

	// Assets contains assets/index.html for the info page. May be nil.
	Assets fs.FS
}

// Server dispatches scrape requests to a [Getter].
//
// Server provides up to three routes:
//   - GET <endpoint>: metrics for the target named by the query string
//   - GET /: an info page linking to the endpoint
//   - GET <telemetry path>: the exporter's own metrics, when configured
//
// Every other path is a 404. The server shuts down gracefully when the
// context passed to [Server.Start] is cancelled.
type Server struct {
	getter Getter
	cfg    Config
	logger *slog.Logger

	// lookupEnv is os.LookupEnv outside of tests.
	lookupEnv func(string) (string, bool)

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
	done       chan struct{}
}

// NewServer creates a new HTTP [Server]. The server is not started until
// [Server.Start] is called.
func NewServer(getter Getter, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		getter:    getter,
		cfg:       cfg,
		logger:    logger,
		lookupEnv: os.LookupEnv,
		done:      make(chan struct{}),
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Endpoint, s.handleMetrics)

	if s.cfg.TelemetryPath != "" && s.cfg.Telemetry != nil {
		if s.cfg.TelemetryPath == s.cfg.Endpoint || s.cfg.TelemetryPath == "/" {
			s.logger.Warn("telemetry path conflicts with another route, not serving telemetry",
				"telemetry_path", s.cfg.TelemetryPath,
			)
		} else {
			mux.Handle(s.cfg.TelemetryPath, s.cfg.Telemetry)
		}
	}

	if s.cfg.Endpoint != "/" {
		mux.HandleFunc("/", s.handleRoot)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound. When ctx is
// cancelled the server stops accepting connections and waits up to
// [ShutdownTimeout] for in-flight requests, which are not cancelled by ctx;
// [Server.Done] is closed afterwards.
//
// Returns an error if the server fails to bind.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Address, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		// requests outlive ctx; Shutdown bounds how long they may take
		BaseContext: func(_ net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Done is closed once the server has shut down after its context ended.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// handleMetrics serves the encoded metrics for one target.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	target, mode, err := s.parseRequest(r)
	if err != nil {
		s.logger.Warn("invalid scrape request",
			"request_id", requestID,
			"error", err,
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload, err := s.getter.Get(r.Context(), target, mode)
	if err != nil {
		if errors.Is(err, cache.ErrNotReady) {
			s.logger.Debug("metrics not ready",
				"request_id", requestID,
				"target", target.Key().String(),
			)
			http.Error(w, "metrics not yet available, retry shortly", http.StatusInternalServerError)
			return
		}
		s.logger.Warn("scrape failed",
			"request_id", requestID,
			"target", target.Key().String(),
			"mode", mode.String(),
			"error", err,
		)
		http.Error(w, "failed to collect metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", metrics.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(payload); err != nil {
		s.logger.Error("failed to write metrics response",
			"request_id", requestID,
			"error", err,
		)
	}
}

// parseRequest extracts the target and mode from the query string, falling
// back to environment variables for absent or empty values.
func (s *Server) parseRequest(r *http.Request) (ilo.Target, cache.Mode, error) {
	query := r.URL.Query()
	value := func(param, env string) string {
		if v := query.Get(param); v != "" {
			return v
		}
		v, _ := s.lookupEnv(env)
		return v
	}

	var target ilo.Target
	for _, p := range []struct {
		param, env string
		dst        *string
	}{
		{paramHost, envHost, &target.Host},
		{paramUser, envUser, &target.User},
		{paramPassword, envPassword, &target.Password},
	} {
		*p.dst = value(p.param, p.env)
		if *p.dst == "" {
			return ilo.Target{}, cache.ModeCached, &ConfigError{Param: p.param, Err: errMissingParam}
		}
	}

	rawPort := value(paramPort, envPort)
	if rawPort == "" {
		return ilo.Target{}, cache.ModeCached, &ConfigError{Param: paramPort, Err: errMissingParam}
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 1 || port > 65535 {
		return ilo.Target{}, cache.ModeCached, &ConfigError{Param: paramPort, Err: errInvalidPort}
	}
	target.Port = port

	mode := cache.ModeSynchronous
	if isTruthy(value(paramCached, envCached)) {
		mode = cache.ModeCached
	}
	return target, mode, nil
}

// isTruthy reports whether v is one of the accepted spellings of true.
// Matching is exact: "TRUE" and "Yes" are false.
func isTruthy(v string) bool {
	switch v {
	case "true", "1", "t", "y", "yes":
		return true
	}
	return false
}

// handleRoot serves the info page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Assets == nil {
		http.Error(w, "Info page not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Info page not found", http.StatusInternalServerError)
		return
	}

	rendered := strings.ReplaceAll(string(content), endpointPlaceholder, html.EscapeString(s.cfg.Endpoint))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write info page response", "error", err)
	}
}
