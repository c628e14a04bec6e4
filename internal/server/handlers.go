package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/chart"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/fetcher"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/insight"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/report"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("http handler failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, normalize.ErrMalformedNumber),
		errors.Is(err, metrics.ErrInsufficientData),
		errors.Is(err, processes.ErrColumnsUnresolved),
		errors.Is(err, fetcher.ErrAmbiguousArchive):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, statusFor(err), err)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// primary loads the primary slot and applies the query filters.
func (s *Server) primary(r *http.Request) (*dataset.Dataset, error) {
	q := r.URL.Query()
	f, err := dataset.ParseFilter(q.Get("years"), q.Get("states"), q.Get("substances"))
	if err != nil {
		return nil, errBadRequest{err}
	}
	slot, err := s.store.GetSlot(r.Context(), store.SlotPrimary)
	if err != nil {
		return nil, err
	}
	d, err := s.loader.Load(r.Context(), slot.Data)
	if err != nil {
		return nil, err
	}
	return d.Filter(f), nil
}

// processRecords loads the processes slot with detected columns overridden
// by configuration.
func (s *Server) processRecords(r *http.Request) ([]processes.Record, error) {
	slot, err := s.store.GetSlot(r.Context(), store.SlotProcesses)
	if err != nil {
		return nil, err
	}
	t, err := s.processes.Load(r.Context(), slot.Data)
	if err != nil {
		return nil, err
	}
	return processes.Records(t, processes.DetectColumns(t).Override(s.opts.ProcessColumns))
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

// withData loads the filtered primary dataset and hands it to fn.
func (s *Server) withData(fn func(w http.ResponseWriter, r *http.Request, d *dataset.Dataset)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.primary(r)
		var bad errBadRequest
		if errors.As(err, &bad) {
			respondError(w, r, http.StatusBadRequest, err)
			return
		}
		if err != nil {
			fail(w, r, err)
			return
		}
		fn(w, r, d)
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s %q", name, v)
	}
	return n, nil
}

// Slots

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.store.ListSlots(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if slots == nil {
		slots = []store.Slot{}
	}
	render.JSON(w, r, map[string]any{"slots": slots})
}

func (s *Server) clearSlots(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Clear(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]int{"deleted": n})
}

func (s *Server) deleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSlot(r.Context(), chi.URLParam(r, "name")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// putSlot accepts a multipart upload in the "file" field. The file must
// parse before it is stored.
func (s *Server) putSlot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != store.SlotPrimary && name != store.SlotProcesses {
		respondError(w, r, http.StatusBadRequest, eris.Errorf("unknown slot %q", name))
		return
	}

	if r.ContentLength > s.opts.MaxUploadBytes {
		respondError(w, r, http.StatusRequestEntityTooLarge, eris.Errorf("upload exceeds %d bytes", s.opts.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			fail(w, r, err)
			return
		}
		respondError(w, r, http.StatusBadRequest, eris.Wrap(err, "missing file field"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, r, eris.Wrap(err, "read upload"))
		return
	}

	if name == store.SlotPrimary {
		_, err = s.loader.Load(r.Context(), data)
	} else {
		_, err = s.processes.Load(r.Context(), data)
	}
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			respondError(w, r, http.StatusUnprocessableEntity, err)
			return
		}
		fail(w, r, err)
		return
	}

	slot := store.NewSlot(name, header.Filename, data, s.opts.SlotTTL)
	if err := s.store.PutSlot(r.Context(), slot); err != nil {
		fail(w, r, err)
		return
	}
	zap.L().Info("slot stored",
		zap.String("slot", name),
		zap.String("file", header.Filename),
		zap.Int64("size", slot.Size),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, slot)
}

// Analyses

type overviewResponse struct {
	Overview metrics.Overview `json:"overview"`
	Encoding string           `json:"encoding"`
	Lossy    bool             `json:"lossy"`
	Years    []int            `json:"years"`
	States   []string         `json:"states"`
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	render.JSON(w, r, overviewResponse{
		Overview: metrics.OverviewOf(d),
		Encoding: string(d.Encoding),
		Lossy:    d.Lossy,
		Years:    d.Years(),
		States:   d.Distinct(dataset.ColState),
	})
}

func (s *Server) quality(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	render.JSON(w, r, metrics.Quality(d, s.opts.Quality))
}

func (s *Server) pareto(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	q := r.URL.Query()
	group, value := dataset.ColMunicipality, dataset.ColAmount
	var err error
	if v := q.Get("group"); v != "" {
		if group, err = dataset.ParseColumn(v); err != nil {
			respondError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	if v := q.Get("value"); v != "" {
		if value, err = dataset.ParseColumn(v); err != nil || !value.Numeric() {
			respondError(w, r, http.StatusBadRequest, eris.Errorf("value must be a numeric column, got %q", v))
			return
		}
	}
	top, err := intParam(r, "top", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, metrics.ParetoAnalysis(d, group, value, top))
}

type trendResponse struct {
	Labels []string       `json:"labels"`
	Values []float64      `json:"values"`
	Trend  *metrics.Trend `json:"trend"`
}

func (s *Server) trend(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	var resp trendResponse
	switch series := r.URL.Query().Get("series"); series {
	case "", "period":
		for _, g := range d.PeriodTotals() {
			resp.Labels = append(resp.Labels, g.Key)
			resp.Values = append(resp.Values, g.Value)
		}
	case "year":
		for _, y := range d.YearTotals() {
			resp.Labels = append(resp.Labels, strconv.Itoa(y.Year))
			resp.Values = append(resp.Values, y.Value)
		}
	default:
		respondError(w, r, http.StatusBadRequest, eris.Errorf("series must be period or year, got %q", series))
		return
	}
	t, err := metrics.LinearTrend(resp.Values)
	if err != nil {
		fail(w, r, err)
		return
	}
	resp.Trend = t
	render.JSON(w, r, resp)
}

func (s *Server) seasonality(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	sea, err := metrics.SeasonalityOf(d)
	if err != nil {
		fail(w, r, err)
		return
	}
	render.JSON(w, r, sea)
}

func (s *Server) correlation(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	top, err := intParam(r, "top", metrics.DefaultCorrelationTop)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, metrics.SubstanceCorrelation(d, top))
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	out := insight.Global(d)
	if out == nil {
		out = []insight.Statement{}
	}
	render.JSON(w, r, map[string]any{"insights": out})
}

// diagnosis builds the report for the municipality named in the URL.
// Holders are included when a processes file is stored. ok is false when a
// reply has already been written.
func (s *Server) diagnosis(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) (*report.Diagnosis, bool) {
	req := report.Request{
		Municipality: chi.URLParam(r, "name"),
		State:        chi.URLParam(r, "state"),
		Distribution: s.opts.Distribution,
		Phase:        s.opts.Phase,
	}
	records, err := s.processRecords(r)
	switch {
	case err == nil:
		req.Processes = records
	case errors.Is(err, store.ErrSlotNotFound):
	default:
		zap.L().Warn("processes unavailable for diagnosis", zap.Error(err))
	}

	diag, err := report.Build(r.Context(), d, req)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			respondError(w, r, http.StatusBadRequest, err)
			return nil, false
		}
		fail(w, r, err)
		return nil, false
	}
	return diag, true
}

// municipality returns the diagnosis as JSON, or as a workbook with
// ?format=xlsx.
func (s *Server) municipality(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	diag, ok := s.diagnosis(w, r, d)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="diagnostico.xlsx"`)
		if err := diag.WriteXLSX(w); err != nil {
			zap.L().Error("write diagnosis workbook", zap.Error(err))
		}
		return
	}
	render.JSON(w, r, diag)
}

// municipalityChart renders one diagnosis chart (evolucao, substancias or
// mensal) as PNG.
func (s *Server) municipalityChart(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) {
	diag, ok := s.diagnosis(w, r, d)
	if !ok {
		return
	}
	charts, err := diag.Charts()
	if err != nil {
		fail(w, r, err)
		return
	}
	name := chi.URLParam(r, "chart")
	for _, c := range charts {
		if c.Name != name {
			continue
		}
		var buf bytes.Buffer
		if err := chart.WritePNG(&buf, c.Plot); err != nil {
			fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Write(buf.Bytes()) //nolint:errcheck
		return
	}
	respondError(w, r, http.StatusNotFound, eris.Errorf("chart %q not available", name))
}
