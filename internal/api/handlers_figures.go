package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/charts"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
)

// Figures are drawn from the state encoded in the query, the same state
// the page was rendered from. Unlike the page itself they always accept
// query parameters.

func (s *Server) handleFoldsFigure(w http.ResponseWriter, r *http.Request) {
	s.figure(w, r, "folds", s.dashboard.RenderFolds)
}

func (s *Server) handleRawFigure(w http.ResponseWriter, r *http.Request) {
	s.figure(w, r, "raw", s.dashboard.RenderRaw)
}

func (s *Server) handleAggregationFigure(w http.ResponseWriter, r *http.Request) {
	file, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".png")
	if !ok {
		http.Error(w, "Figure not found", http.StatusNotFound)
		return
	}
	column, err := url.PathUnescape(file)
	if err != nil {
		http.Error(w, "Bad column name", http.StatusBadRequest)
		return
	}
	s.figure(w, r, "aggregation", func(w io.Writer, v *dashboard.View) error {
		return s.dashboard.RenderAggregation(w, v, column)
	})
}

func (s *Server) figure(w http.ResponseWriter, r *http.Request, name string, draw func(io.Writer, *dashboard.View) error) {
	state := dashboard.State{Values: r.URL.Query(), Limits: s.sessionLimits(r)}
	v := s.dashboard.Resolve(withSession(r, state), state)
	if v.Failed() {
		http.Error(w, v.Errors[0].Title, http.StatusUnprocessableEntity)
		return
	}

	var buf bytes.Buffer
	if err := draw(&buf, v); err != nil {
		if errors.Is(err, dashboard.ErrNoFigure) || errors.Is(err, charts.ErrNothingToPlot) {
			http.Error(w, "Figure not available", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to render figure", zap.String("figure", name), zap.Error(err))
		http.Error(w, "Failed to render figure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
