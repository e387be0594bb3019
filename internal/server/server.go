// Package server exposes a session over HTTP: the page with the attribute
// dropdown, the map and chart documents, the current frame, and selection
// events.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/metrics"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/pipeline"
	"github.com/sells-group/choropleth/internal/render"
	"github.com/sells-group/choropleth/internal/selection"
)

// Server serves one session.
type Server struct {
	session *pipeline.Session
	cache   *render.Cache
	origins []string
	// dataset identifies the joined data; documents rendered for an
	// attribute stay valid for the life of the process.
	dataset string

	previewMu sync.Mutex
	preview   *render.SVGPainter
}

// New creates a server over session.
func New(session *pipeline.Session, cfg config.ServerConfig) (*Server, error) {
	preview, err := session.NewPainter()
	if err != nil {
		return nil, eris.Wrap(err, "server: create preview painter")
	}
	size := cfg.CacheSize
	if size < 1 {
		size = 64
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		session: session,
		cache:   render.NewCache(size, cfg.CacheTTL),
		origins: origins,
		dataset: uuid.NewString(),
		preview: preview,
	}, nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handlePage)
	r.Get("/health", s.handleHealth)
	r.Get("/map.svg", s.handleDocument(render.KindMap))
	r.Get("/chart.svg", s.handleDocument(render.KindChart))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/attributes", s.handleAttributes)
		r.Get("/frame", s.handleFrame)
		r.Post("/selection", s.handleSelection)
		r.Get("/report", s.handleReport)
		r.Get("/cache", s.handleCacheStats)
	})
	return r
}

// requestLogger logs each request and counts it by route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		zap.L().Debug("http request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.String("component", "server"), zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	frame, painted := s.session.Controller.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"painted":   painted,
		"attribute": frame.Attribute,
		"state":     s.session.Controller.State().String(),
	})
}

// attributeParam resolves the optional attribute query parameter. An empty
// value means the current selection.
func attributeParam(r *http.Request) (model.AttributeName, bool, error) {
	raw := r.URL.Query().Get("attribute")
	if raw == "" {
		return "", false, nil
	}
	attr, err := model.ParseAttribute(raw)
	if err != nil {
		return "", false, err
	}
	return attr, true, nil
}

// handleDocument serves the map or chart. Without an attribute it serves the
// current selection; with one it renders that attribute without selecting it.
func (s *Server) handleDocument(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attr, explicit, err := attributeParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var key render.DocKey
		var renderDocs func() (render.Documents, error)
		if explicit {
			key = render.DocKey{Kind: kind, Attribute: attr, Revision: s.dataset}
			renderDocs = func() (render.Documents, error) { return s.renderPreview(attr) }
		} else {
			frame, ok := s.session.Controller.Current()
			if !ok {
				writeError(w, http.StatusServiceUnavailable, "nothing painted yet")
				return
			}
			key = render.DocKey{Kind: kind, Attribute: frame.Attribute, Revision: frame.Revision}
			renderDocs = func() (render.Documents, error) {
				docs, _ := s.session.Painter.Documents()
				if docs.Attribute != frame.Attribute {
					return render.Documents{}, eris.New("server: selection changed during request")
				}
				return docs, nil
			}
		}

		data, hit, err := s.cache.GetOrRender(key, func() ([]byte, error) {
			docs, err := renderDocs()
			if err != nil {
				return nil, err
			}
			if kind == render.KindChart {
				return docs.Chart, nil
			}
			return docs.Map, nil
		})
		if err != nil {
			zap.L().Warn("document render failed",
				zap.String("component", "server"),
				zap.String("kind", kind),
				zap.Error(err),
			)
			writeError(w, http.StatusConflict, "document unavailable, retry")
			return
		}

		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.DocumentCacheTotal.WithLabelValues(kind, result).Inc()

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("X-Cache", result)
		w.Header().Set("ETag", strconv.Quote(key.String()))
		_, _ = w.Write(data)
	}
}

func (s *Server) renderPreview(attr model.AttributeName) (render.Documents, error) {
	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	records := s.session.Data.Counties.Records
	scale := classify.Build(records, attr, s.session.Controller.Classes())
	if err := render.Paint(s.preview, records, scale); err != nil {
		return render.Documents{}, err
	}
	docs, _ := s.preview.Documents()
	return docs, nil
}

type attributeInfo struct {
	Name     model.AttributeName `json:"name"`
	Slug     string              `json:"slug"`
	Selected bool                `json:"selected"`
}

func (s *Server) handleAttributes(w http.ResponseWriter, _ *http.Request) {
	current := s.session.Controller.Attribute()
	out := make([]attributeInfo, 0, len(model.Attributes()))
	for _, a := range model.Attributes() {
		out = append(out, attributeInfo{Name: a, Slug: a.Slug(), Selected: a == current})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	frame, ok := s.session.Controller.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "nothing painted yet")
		return
	}
	writeJSON(w, http.StatusOK, s.frameResponse(frame))
}

type selectionRequest struct {
	Attribute string `json:"attribute"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	attr, err := model.ParseAttribute(req.Attribute)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	frame, err := s.session.Controller.Select(r.Context(), attr)
	switch {
	case errors.Is(err, model.ErrUnknownAttribute):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zap.L().Error("selection failed",
			zap.String("component", "server"),
			zap.String("attribute", attr.String()),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "selection failed")
		return
	}

	if n := s.cache.InvalidateExcept(frame.Revision, s.dataset); n > 0 {
		zap.L().Debug("dropped stale documents", zap.String("component", "server"), zap.Int("entries", n))
	}
	writeJSON(w, http.StatusOK, s.frameResponse(frame))
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Data.Report)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

type legendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

type unitState struct {
	Class int      `json:"class"`
	Color string   `json:"color"`
	Value *float64 `json:"value"`
}

type frameResponse struct {
	Revision    string               `json:"revision"`
	Attribute   model.AttributeName  `json:"attribute"`
	Breaks      []float64            `json:"breaks"`
	Legend      []legendEntry        `json:"legend"`
	NoDataColor string               `json:"no_data_color"`
	Units       map[string]unitState `json:"units"`
}

func (s *Server) frameResponse(f selection.Frame) frameResponse {
	palette := s.session.Options.Palette
	classes := f.Scale.Classes()

	labels := render.LegendLabels(f.Scale.Breaks)
	legend := make([]legendEntry, len(labels))
	for i, l := range labels {
		legend[i] = legendEntry{Label: l, Color: palette.Color(i, classes)}
	}

	units := make(map[string]unitState, len(f.Classes))
	for key, class := range f.Classes {
		u := unitState{Class: class, Color: palette.Color(class, classes)}
		if recs := s.session.Data.Counties.Lookup(key); len(recs) > 0 {
			if v, ok := recs[0].Value(f.Attribute); ok && model.Finite(v) {
				u.Value = &v
			}
		}
		units[key] = u
	}

	breaks := f.Scale.Breaks
	if breaks == nil {
		breaks = []float64{}
	}
	return frameResponse{
		Revision:    f.Revision,
		Attribute:   f.Attribute,
		Breaks:      breaks,
		Legend:      legend,
		NoDataColor: palette.NoData,
		Units:       units,
	}
}
