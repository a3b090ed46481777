package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/postkit/pkg/domain"
	"github.com/umputun/postkit/pkg/pipeline"
)

// Server represents HTTP server instance
type Server struct {
	config   ConfigProvider
	runner   Runner
	defaults pipeline.Request
	root     string
	version  string
	debug    bool

	runLock sync.Mutex // one run at a time against the archive root

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Runner executes pipeline runs
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*domain.RunSummary, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance. The defaults request supplies everything a run request
// does not set; its OutputRoot is the archive served by the browse and file endpoints.
func New(cfg ConfigProvider, runner Runner, defaults pipeline.Request, version string, debug bool) *Server {
	root, err := filepath.Abs(defaults.OutputRoot)
	if err != nil {
		root = filepath.Clean(defaults.OutputRoot)
	}
	defaults.OutputRoot = root

	s := &Server{
		config:   cfg,
		runner:   runner,
		defaults: defaults,
		root:     root,
		version:  version,
		debug:    debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s, archive %s", listen, s.root)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		// a run can take as long as its run timeout
		WriteTimeout: max(timeout, s.defaults.RunTimeout+timeout),
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// ServeHTTP makes the server usable as a handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("postkit", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024))
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("POST /run", s.runHandler)
		r.HandleFunc("GET /browse", s.browseHandler)
		r.HandleFunc("GET /browse/{path...}", s.browseHandler)
	})

	s.router.HandleFunc("GET /files/{path...}", s.fileHandler)
}

// renderStatusJSON sends JSON response with a non-200 status code.
// rest.RenderJSON can't be used for these, headers are sealed once WriteHeader is called.
func renderStatusJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends {"error": msg} and logs the underlying error
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	rest.SendErrorJSON(w, r, lgr.Default(), code, err, msg)
}
