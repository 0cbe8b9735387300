package agent

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/rileyhilliard/pstop/internal/logger"
)

// Paths served by the agent.
const (
	PathSysInfo = "/sysinfo"
	PathCPUInfo = "/cpuinfo"
	PathMemInfo = "/meminfo"
	PathLogs    = "/logs"
	PathHealth  = "/health"
)

// Endpoints lists the snapshot paths in the order `agent dump` accepts them.
var Endpoints = []string{PathSysInfo, PathCPUInfo, PathMemInfo, PathLogs}

// Server serves collector snapshots over HTTP.
type Server struct {
	collector *Collector
	log       logger.Logger
	router    *mux.Router
	srv       *http.Server
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the router for c.
func NewServer(c *Collector, log logger.Logger) *Server {
	if log == nil {
		log = logger.Noop()
	}
	s := &Server{collector: c, log: log}

	r := mux.NewRouter()
	r.HandleFunc(PathHealth, s.health).Methods(http.MethodGet)
	r.HandleFunc(PathSysInfo, s.snapshot(func(ctx context.Context) (interface{}, error) {
		return c.SysInfo(ctx)
	})).Methods(http.MethodGet)
	r.HandleFunc(PathCPUInfo, s.snapshot(func(ctx context.Context) (interface{}, error) {
		return c.CPUInfo(ctx)
	})).Methods(http.MethodGet)
	r.HandleFunc(PathMemInfo, s.snapshot(func(ctx context.Context) (interface{}, error) {
		return c.MemInfo(ctx)
	})).Methods(http.MethodGet)

	r.HandleFunc(PathLogs, s.logs).Methods(http.MethodGet)

	r.Use(s.recovery)
	r.Use(s.logging)
	s.router = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("agent listening on %s", l.Addr())
		errCh <- s.srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "agent server")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("agent shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "agent shutdown")
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logs answers /logs?since=N. A missing since starts near the end of the
// file.
func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	since := int64(-1)
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be an integer byte offset"})
			return
		}
		since = v
	}
	s.snapshot(func(ctx context.Context) (interface{}, error) {
		return s.collector.Logs(ctx, since)
	})(w, r)
}

func (s *Server) snapshot(fn func(ctx context.Context) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r.Context())
		if err != nil {
			s.log.Error("%s: %+v", r.URL.Path, err)
			s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errors.Cause(err).Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic serving %s: %v\n%s", r.URL.Path, rec, debug.Stack())
				s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
