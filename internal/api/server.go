// Package api exposes the projection engine over HTTP: computing and
// refreshing projections, listing stored datasets, serving figure artifacts
// and interactive chart views.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prism-data/prism/internal/config"
	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/httputil"
	"github.com/prism-data/prism/internal/monitoring"
	"github.com/prism-data/prism/internal/param"
	"github.com/prism-data/prism/internal/projection"
	"github.com/prism-data/prism/internal/projstore"
	"github.com/prism-data/prism/internal/render"
	"github.com/prism-data/prism/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	space    *param.Space
	reg      *emul.Registry
	agg      *projection.Aggregator
	resolver *projection.Resolver
	store    *projstore.Store
	renderer *render.Renderer
	cfg      *config.ProjectionConfig
}

func NewServer(space *param.Space, reg *emul.Registry, store *projstore.Store, cfg *config.ProjectionConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyProjectionConfig()
	}
	return &Server{
		space:    space,
		reg:      reg,
		agg:      projection.NewAggregator(space, reg),
		resolver: projection.NewResolver(space, reg),
		store:    store,
		renderer: render.NewRenderer(space, cfg.GetOutputDir()),
		cfg:      cfg,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projections", s.handleProjections)
	mux.HandleFunc("/api/projections/view", s.viewProjection)
	mux.HandleFunc("/api/projections/figure", s.serveFigure)
	mux.HandleFunc("/api/model", s.showModel)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
