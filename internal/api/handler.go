// Package api serves race view-models as JSON over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/ultrasplit/internal/catalog"
	"github.com/verte-zerg/ultrasplit/internal/histogram"
	"github.com/verte-zerg/ultrasplit/internal/metrics"
	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/race"
	"github.com/verte-zerg/ultrasplit/internal/report"
	"github.com/verte-zerg/ultrasplit/internal/session"
	"github.com/verte-zerg/ultrasplit/internal/store"
)

// Options configure a Handler.
type Options struct {
	DefaultRace string
	Location    *time.Location
	Logger      *slog.Logger
	Metrics     *metrics.Registry
}

// Handler is the HTTP handler for /api/v1/* and /metrics.
type Handler struct {
	catalog *catalog.Catalog
	loc     *time.Location
	logger  *slog.Logger
	metrics *metrics.Registry
	mux     *http.ServeMux

	mu          sync.RWMutex
	defaultRace string
}

// New creates a Handler over the catalog and registers all routes.
func New(c *catalog.Catalog, opts Options) *Handler {
	h := &Handler{
		catalog:     c,
		loc:         opts.Location,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		mux:         http.NewServeMux(),
		defaultRace: opts.DefaultRace,
	}
	if h.loc == nil {
		h.loc = report.RaceTime
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = metrics.NewRegistry()
	}

	h.handle("/api/v1/health", h.health)
	h.handle("/api/v1/races", h.races)
	h.handle("/api/v1/rows", h.rows)
	h.handle("/api/v1/facets", h.facets)
	h.handle("/api/v1/histogram", h.histogram)
	h.handle("/api/v1/checkpoints", h.checkpoints)
	h.handle("/api/v1/diagnostics", h.diagnostics)
	h.handle("/metrics", h.exposition)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// SetDefaultRace changes the race used when a request names none.
func (h *Handler) SetDefaultRace(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultRace = id
}

// DefaultRace returns the race used when a request names none.
func (h *Handler) DefaultRace() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaultRace
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) handle(path string, fn http.HandlerFunc) {
	h.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		if r.Method != http.MethodGet {
			jsonErr(rec, http.StatusMethodNotAllowed, "method not allowed")
		} else {
			fn(rec, r)
		}
		h.metrics.ObserveRequest(path, rec.code)
		h.logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "status", rec.code)
	})
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		DefaultRace: h.DefaultRace(),
		LoadedRaces: len(h.catalog.Loaded()),
	})
}

func (h *Handler) races(w http.ResponseWriter, r *http.Request) {
	infos, err := h.catalog.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	def := h.DefaultRace()
	out := make([]RaceResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, RaceResponse{
			ID:           info.ID,
			Name:         info.Name,
			Source:       info.Source,
			Participants: info.Participants,
			Results:      info.Results,
			Checkpoints:  info.Checkpoints,
			ImportedAt:   optionalTime(info.ImportedAt),
			Default:      info.ID == def,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) rows(w http.ResponseWriter, r *http.Request) {
	id, rc, ok := h.resolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var focus *int
	if v := strings.TrimSpace(q.Get("focus")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "focus must be a non-negative checkpoint rank")
			return
		}
		focus = &n
	}

	s := session.New(rc, h.logger.With("race", id))
	s.SetFocus(focus)
	s.SetFilters(model.Filters{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sex:      q.Get("sex"),
		Country:  q.Get("country"),
	})
	doc := report.NewDocument(report.BuildReport(s, false), h.loc)
	jsonResp(w, http.StatusOK, RowsResponse{Race: id, Document: doc})
}

func (h *Handler) facets(w http.ResponseWriter, r *http.Request) {
	id, rc, ok := h.resolve(w, r)
	if !ok {
		return
	}
	resp := FacetsResponse{
		Race:       id,
		Categories: rc.Facets.Categories,
		Sexes:      rc.Facets.Sexes,
		Countries:  make([]CountryResponse, 0, len(rc.Facets.Countries)),
	}
	for _, c := range rc.Facets.Countries {
		resp.Countries = append(resp.Countries, CountryResponse{Code: c.Code, Name: c.Name})
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) histogram(w http.ResponseWriter, r *http.Request) {
	id, rc, ok := h.resolve(w, r)
	if !ok {
		return
	}
	resp := HistogramResponse{Race: id, Buckets: make([]report.BucketView, 0, len(rc.Histogram))}
	for _, tl := range rc.Timelines {
		if histogram.Qualifies(tl) {
			resp.Finishers++
		}
	}
	for _, b := range rc.Histogram {
		resp.Buckets = append(resp.Buckets, report.BucketView{Hour: b.Hour, Count: b.Count})
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) checkpoints(w http.ResponseWriter, r *http.Request) {
	_, rc, ok := h.resolve(w, r)
	if !ok {
		return
	}
	out := make([]CheckpointResponse, 0, len(rc.Checkpoints))
	for _, cp := range rc.Checkpoints {
		label := report.CheckpointName(rc.Checkpoints, cp.Rank)
		out = append(out, CheckpointResponse{Rank: cp.Rank, Label: label, Rest: report.IsRestSection(label)})
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	_, rc, ok := h.resolve(w, r)
	if !ok {
		return
	}
	out := make([]DiagnosticResponse, 0, len(rc.Diagnostics))
	for _, d := range rc.Diagnostics {
		out = append(out, DiagnosticResponse{
			Kind:       string(d.Kind),
			Bib:        d.Bib,
			Checkpoint: d.Checkpoint,
			Timestamp:  optionalTime(d.Timestamp),
			Message:    d.Message,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) exposition(w http.ResponseWriter, r *http.Request) {
	loaded := h.catalog.Loaded()
	stats := make([]metrics.RaceStats, 0, len(loaded))
	for id, rc := range loaded {
		stats = append(stats, metrics.StatsFor(id, rc))
	}
	w.Header().Set("Content-Type", string(metrics.Format))
	w.WriteHeader(http.StatusOK)
	if err := metrics.Write(w, h.metrics.Families(stats)); err != nil {
		h.logger.Error("failed to write metrics", "err", err)
	}
}

// --- helpers ----------------------------------------------------------------

// resolve loads the race named by ?race=, falling back to the default race.
// It writes the error response itself and reports false on failure.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (string, *session.Race, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("race"))
	if id == "" {
		id = h.DefaultRace()
	}
	if id == "" {
		jsonErr(w, http.StatusBadRequest, "race parameter required")
		return "", nil, false
	}
	rc, err := h.catalog.Race(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return "", nil, false
	}
	return id, rc, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, race.ErrMalformed):
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("request failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
