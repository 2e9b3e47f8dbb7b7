package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/zapdesk/zapmetrics/internal/analytics"
	"github.com/zapdesk/zapmetrics/internal/export"
	"github.com/zapdesk/zapmetrics/internal/logger"
	"github.com/zapdesk/zapmetrics/internal/scope"
)

// writeEngineError maps an engine error to a response. It
// returns without writing when the request context ended.
func (s *Server) writeEngineError(
	w http.ResponseWriter, r *http.Request, err error,
) {
	if handleContextError(w, err) {
		return
	}
	if errors.Is(err, scope.ErrMissingOrganization) ||
		errors.Is(err, scope.ErrMissingCaller) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.WithRequest(r, w.Header().Get(logger.RequestIDHeader)).
		WithField("error", err.Error()).Error("computing report")
	s.writeError(w, http.StatusInternalServerError,
		"internal server error")
}

// computeFunc is one of the engine's report entry points.
type computeFunc func(
	context.Context, analytics.Request,
) (analytics.Report, error)

func (s *Server) serveReport(
	w http.ResponseWriter, r *http.Request, compute computeFunc,
) {
	req, ok := s.parseReportRequest(w, r)
	if !ok {
		return
	}
	rep, err := compute(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	// A canceled request yields zero-filled sections; the
	// timeout middleware owns the response in that case.
	if handleContextError(w, r.Context().Err()) {
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDashboard(
	w http.ResponseWriter, r *http.Request,
) {
	s.serveReport(w, r, s.engine.Dashboard)
}

func (s *Server) handleMetricsReport(
	w http.ResponseWriter, r *http.Request,
) {
	s.serveReport(w, r, s.engine.Metrics)
}

func (s *Server) handleProductivity(
	w http.ResponseWriter, r *http.Request,
) {
	req, ok := s.parseReportRequest(w, r)
	if !ok {
		return
	}
	rep, err := s.engine.ProductivityReport(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if handleContextError(w, r.Context().Err()) {
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleExportProductivity(
	w http.ResponseWriter, r *http.Request,
) {
	req, ok := s.parseReportRequest(w, r)
	if !ok {
		return
	}
	rep, err := s.engine.ProductivityReport(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+export.Filename(rep)+`"`)
	if err := export.WriteProductivity(w, rep); err != nil {
		s.log.WithError(err).Warn("writing productivity export")
	}
}
