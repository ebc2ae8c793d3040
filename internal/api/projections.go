package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prism-data/prism/internal/config"
	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/httputil"
	"github.com/prism-data/prism/internal/param"
	"github.com/prism-data/prism/internal/projection"
	"github.com/prism-data/prism/internal/projstore"
	"github.com/prism-data/prism/internal/render"
	"github.com/prism-data/prism/internal/security"
)

// projectionRequest is the body of POST /api/projections. The embedded
// config overrides are applied on top of the server's loaded config for this
// request only. impl_cut is the exception: cut-offs are fixed when the
// emulator registry is constructed, so a request that sets it is rejected.
type projectionRequest struct {
	Iteration int      `json:"iteration"`
	Params    []string `json:"params"`
	Type      string   `json:"type"`
	Force     bool     `json:"force"`
	config.ProjectionConfig
}

// projectionResult reports the outcome for one resolved key.
type projectionResult struct {
	Key        projection.Key `json:"key"`
	Cached     bool           `json:"cached"`
	FigurePath string         `json:"figure_path,omitempty"`
	Cells      int            `json:"cells"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listProjections(w, r)
	case http.MethodPost:
		s.computeProjections(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listProjections(w http.ResponseWriter, r *http.Request) {
	iteration := 0
	if v := r.URL.Query().Get("iteration"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'iteration' parameter")
			return
		}
		iteration = parsed
	}

	records, err := s.store.List(iteration)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list projections: %v", err))
		return
	}
	if records == nil {
		records = []projstore.Record{}
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) computeProjections(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.ImplCut) > 0 {
		httputil.BadRequest(w, "impl_cut cannot be changed per request; restart with a new config")
		return
	}
	if err := req.ProjectionConfig.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	typ := projection.Type(req.Type)
	if req.Type == "" {
		typ = projection.TypeBoth
	}

	compute, cached, err := s.resolver.Resolve(req.Iteration, req.Params, typ, s.store, req.Force)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	// Request fields override the server config only where they are set.
	opts := s.cfg.Overlay(&req.ProjectionConfig).Options()
	opts.Force = req.Force
	if err := opts.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	results := make([]projectionResult, 0, len(compute)+len(cached))
	for _, key := range append(append([]projection.Key(nil), compute...), cached...) {
		ds, hit, err := s.store.GetOrCompute(r.Context(), key, opts.Force,
			func(ctx context.Context, k projection.Key) (*projection.Dataset, error) {
				return s.agg.Project(ctx, k, opts)
			})
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("projection %s: %v", key, err))
			return
		}

		res := projectionResult{Key: key, Cached: hit, Cells: len(ds.Cells), CreatedAt: ds.CreatedAt}
		if opts.Figure {
			if hit {
				// Reuse the stored artifact when one exists.
				if path, err := s.store.FigurePath(key); err == nil && path != "" {
					res.FigurePath = path
				}
			}
			if res.FigurePath == "" {
				path, err := s.renderer.Render(ds, opts)
				if err != nil {
					httputil.InternalServerError(w, fmt.Sprintf("render %s: %v", key, err))
					return
				}
				if err := s.store.RecordFigure(key, path); err != nil {
					httputil.InternalServerError(w, fmt.Sprintf("record figure %s: %v", key, err))
					return
				}
				res.FigurePath = path
			}
		}
		results = append(results, res)
	}
	httputil.WriteJSONOK(w, results)
}

// keyFromQuery parses iteration/params/type query parameters into a key.
func (s *Server) keyFromQuery(r *http.Request) (projection.Key, error) {
	iteration, err := strconv.Atoi(r.URL.Query().Get("iteration"))
	if err != nil || iteration < 1 {
		return projection.Key{}, fmt.Errorf("invalid 'iteration' parameter")
	}
	params := strings.Split(r.URL.Query().Get("params"), ",")
	for i := range params {
		params[i] = strings.TrimSpace(params[i])
	}
	typ := projection.Type(r.URL.Query().Get("type"))
	if typ == "" {
		if len(params) == 2 {
			typ = projection.Type3D
		} else {
			typ = projection.Type2D
		}
	}
	key := projection.NewKey(iteration, typ, params...)
	if err := key.Validate(); err != nil {
		return projection.Key{}, err
	}
	return key, nil
}

func (s *Server) viewProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	key, err := s.keyFromQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ds, err := s.store.Get(key)
	if errors.Is(err, projstore.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("no stored projection for %s", key))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load projection: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteHTML(w, ds, s.cfg.Options()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
	}
}

func (s *Server) serveFigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	key, err := s.keyFromQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	path, err := s.store.FigurePath(key)
	if errors.Is(err, projstore.ErrNotFound) || path == "" {
		httputil.NotFound(w, fmt.Sprintf("no figure for %s", key))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("lookup figure: %v", err))
		return
	}
	// The stored path must stay inside the configured output directory.
	if err := security.ValidatePathWithinDirectory(path, s.cfg.GetOutputDir()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("invalid figure path: %v", err))
		return
	}
	http.ServeFile(w, r, path)
}

// modelInfo describes the emulator model for clients building requests.
type modelInfo struct {
	Parameters []paramInfo `json:"parameters"`
	Latest     int         `json:"latest_iteration"`
	Iterations []iterInfo  `json:"iterations"`
}

type paramInfo struct {
	Name     string   `json:"name"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Estimate *float64 `json:"estimate,omitempty"`
}

type iterInfo struct {
	Iteration int       `json:"iteration"`
	Cutoffs   []float64 `json:"cutoffs"`
	Active    []string  `json:"active"`
}

func (s *Server) showModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	info := modelInfo{Latest: s.reg.Latest()}
	for _, name := range s.space.Names() {
		p, err := s.space.Lookup(name)
		if err != nil {
			continue
		}
		info.Parameters = append(info.Parameters, paramInfo{
			Name: p.Name, Min: p.Min, Max: p.Max, Estimate: p.Estimate,
		})
	}
	for i := 1; i <= s.reg.Latest(); i++ {
		st, err := s.reg.State(i)
		if err != nil {
			continue
		}
		info.Iterations = append(info.Iterations, iterInfo{
			Iteration: i,
			Cutoffs:   st.Cutoffs.Values,
			Active:    st.Active,
		})
	}
	httputil.WriteJSONOK(w, info)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"n_proj_samples":   s.cfg.GetNProjSamples(),
		"n_hidden_samples": s.cfg.GetNHiddenSamples(),
		"impl_cut":         s.cfg.GetImplCut(),
		"align":            s.cfg.GetAlign(),
		"output_dir":       s.cfg.GetOutputDir(),
	})
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, param.ErrUnknownParameter),
		errors.Is(err, projection.ErrUnsupportedProjection),
		errors.Is(err, projection.ErrNotEnoughParams):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, emul.ErrNotConstructed):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
