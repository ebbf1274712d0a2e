// Package dashboard serves the JEP dashboard page and its JSON API.
package dashboard

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/aggregate"
	"github.com/sells-group/jep-dashboard/internal/export"
	"github.com/sells-group/jep-dashboard/internal/filter"
	"github.com/sells-group/jep-dashboard/internal/loader"
	"github.com/sells-group/jep-dashboard/internal/model"
)

// Source yields the current table for a path. *loader.Cache satisfies it.
type Source interface {
	Get(ctx context.Context, path string) (*model.Table, error)
	Invalidate(path string)
}

// ExportRecorder persists export events. It may be nil.
type ExportRecorder interface {
	RecordExport(ctx context.Context, ev model.ExportEvent) error
}

// Options configures a Server.
type Options struct {
	SourcePath  string
	Delimiter   rune
	CORSOrigins []string
}

// Server wires the router to a table source.
type Server struct {
	opts     Options
	source   Source
	exports  ExportRecorder
	renderer *Renderer
	now      func() time.Time
}

// New creates a Server.
func New(opts Options, source Source, exports ExportRecorder) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	return &Server{
		opts:     opts,
		source:   source,
		exports:  exports,
		renderer: renderer,
		now:      time.Now,
	}, nil
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Get("/summary", s.handleSummary)
		r.Get("/charts", s.handleCharts)
		r.Get("/records", s.handleRecords)
		r.Get("/export.{format}", s.handleExport)
		r.Post("/reload", s.handleReload)
	})
	return r
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		RequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("dashboard: encode response", zap.Error(err))
	}
}

// loadError maps a load failure to a status code and user message.
func loadError(err error) (int, string) {
	if le, ok := loader.AsLoadError(err); ok {
		return http.StatusServiceUnavailable, le.Message()
	}
	return http.StatusInternalServerError, "Error al cargar los datos: " + err.Error()
}

// table loads the source and applies the request's selection.
func (s *Server) table(r *http.Request) (full, filtered *model.Table, sel filter.Selection, err error) {
	full, err = s.source.Get(r.Context(), s.opts.SourcePath)
	if err != nil {
		return nil, nil, sel, err
	}
	sel = filter.ParseSelection(r.URL.Query())
	return full, filter.Apply(full, sel), sel, nil
}

// apiTable is table for JSON handlers; it writes the error response itself.
func (s *Server) apiTable(w http.ResponseWriter, r *http.Request) (*model.Table, *model.Table, filter.Selection, bool) {
	full, filtered, sel, err := s.table(r)
	if err != nil {
		code, msg := loadError(err)
		writeJSON(w, code, map[string]string{"error": msg})
		return nil, nil, sel, false
	}
	return full, filtered, sel, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	full, filtered, sel, err := s.table(r)
	if err != nil {
		code, msg := loadError(err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(code)
		if rerr := s.renderer.RenderError(w, &ErrorData{Code: code, Title: "No se pudieron cargar los datos", Message: msg}); rerr != nil {
			zap.L().Error("dashboard: render error page", zap.Error(rerr))
		}
		return
	}

	cols := full.SelectColumns(r.URL.Query()["columns"])
	data := &IndexData{
		Source:      full.Source,
		Selection:   sel,
		Choices:     filter.Options(full),
		Summary:     aggregate.Summarize(filtered),
		Quick:       aggregate.Quick(filtered),
		AllColumns:  full.Columns,
		Columns:     cols,
		Rows:        project(filtered, cols),
		ExportQuery: template.URL(sel.Query().Encode()), //nolint:gosec // encoded by url.Values
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderIndex(w, data); err != nil {
		zap.L().Error("dashboard: render index", zap.Error(err))
	}
}

func project(tbl *model.Table, cols []string) [][]string {
	rows := make([][]string, len(tbl.Records))
	for i, rec := range tbl.Records {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j], _ = rec.Value(c)
		}
		rows[i] = row
	}
	return rows
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	full, _, _, ok := s.apiTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, filter.Options(full))
}

type summaryResponse struct {
	Selection         filter.Selection     `json:"selection"`
	Summary           aggregate.Summary    `json:"summary"`
	MeanDurationLabel string               `json:"mean_duration_label"`
	Quick             aggregate.QuickStats `json:"quick"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	_, filtered, sel, ok := s.apiTable(w, r)
	if !ok {
		return
	}
	sum := aggregate.Summarize(filtered)
	writeJSON(w, http.StatusOK, summaryResponse{
		Selection:         sel,
		Summary:           sum,
		MeanDurationLabel: sum.MeanDurationLabel(),
		Quick:             aggregate.Quick(filtered),
	})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	_, filtered, _, ok := s.apiTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.BuildCharts(filtered))
}

type recordsResponse struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	full, filtered, _, ok := s.apiTable(w, r)
	if !ok {
		return
	}
	cols := full.SelectColumns(r.URL.Query()["columns"])
	writeJSON(w, http.StatusOK, recordsResponse{
		Columns: cols,
		Rows:    project(filtered, cols),
		Total:   filtered.Len(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	_, filtered, sel, ok := s.apiTable(w, r)
	if !ok {
		return
	}

	name := export.FileName(s.now(), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := export.Write(w, filtered, format, s.opts.Delimiter); err != nil {
		zap.L().Error("dashboard: export", zap.String("file", name), zap.Error(err))
		return
	}
	ExportsTotal.WithLabelValues(string(format)).Inc()

	if s.exports != nil {
		ev := model.ExportEvent{
			FileName:  name,
			Format:    string(format),
			Status:    sel.Status,
			Year:      sel.Year,
			Owner:     sel.Owner,
			Rows:      filtered.Len(),
			CreatedAt: s.now().UTC(),
		}
		if err := s.exports.RecordExport(r.Context(), ev); err != nil {
			zap.L().Warn("dashboard: record export", zap.Error(err))
		}
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.source.Invalidate(s.opts.SourcePath)
	tbl, err := s.source.Get(r.Context(), s.opts.SourcePath)
	if err != nil {
		code, msg := loadError(err)
		writeJSON(w, code, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"records":   tbl.Len(),
		"signature": tbl.Signature,
	})
}

// ObserveLoad feeds load outcomes into the metrics. It fits loader.LoadObserver.
func ObserveLoad(_ string, tbl *model.Table, err error, elapsed time.Duration) {
	LoadDuration.Observe(elapsed.Seconds())
	if err == nil {
		LoadsTotal.WithLabelValues(LoadOK).Inc()
		RecordsLoaded.Set(float64(tbl.Len()))
		return
	}
	if le, ok := loader.AsLoadError(err); ok && le.Kind == loader.KindNotFound {
		LoadsTotal.WithLabelValues(LoadNotFound).Inc()
		return
	}
	LoadsTotal.WithLabelValues(LoadFailed).Inc()
}
