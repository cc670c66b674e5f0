package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/cache"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
	"github.com/aaronlmathis/timesplit/internal/display"
	"github.com/aaronlmathis/timesplit/internal/query"
)

// datasetInfo describes a bundled dataset.
type datasetInfo struct {
	Index          int               `json:"index"`
	Label          string            `json:"label"`
	Data           string            `json:"data"`
	Summary        string            `json:"summary,omitempty"`
	Description    string            `json:"description,omitempty"`
	Rows           int               `json:"rows"`
	Columns        []string          `json:"columns"`
	Start          time.Time         `json:"start,omitzero"`
	End            time.Time         `json:"end,omitzero"`
	Aggregations   map[string]string `json:"aggregations,omitempty"`
	SkippedColumns []string          `json:"skipped_columns,omitempty"`
}

type datasetsResponse struct {
	Status   *cache.Status `json:"status,omitempty"`
	Datasets []datasetInfo `json:"datasets"`
}

// handleListDatasets lists the bundled datasets along with the state of
// the dataset cache.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	resp := datasetsResponse{Datasets: []datasetInfo{}}
	if s.datasets == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	loaded, err := s.datasets.Datasets(r.Context())
	status := s.datasets.Status()
	resp.Status = &status
	if err != nil {
		s.logger.Error("Failed to get datasets", zap.Error(err))
		code := http.StatusInternalServerError
		if cache.IsFatal(err) {
			code = http.StatusServiceUnavailable
		}
		writeError(w, code, "DATASETS_UNAVAILABLE", err.Error())
		return
	}

	for i, ds := range loaded.Datasets {
		info := datasetInfo{
			Index:          i,
			Label:          ds.Label,
			Data:           query.LabelData(ds.Label).Encode(),
			Summary:        ds.Summary(),
			Description:    ds.Description,
			Rows:           ds.Frame.Len(),
			Columns:        ds.Frame.ColumnNames(),
			Aggregations:   ds.Aggregations,
			SkippedColumns: ds.SkippedColumns,
		}
		if lo, hi, ok := ds.Frame.Limits(); ok {
			info.Start, info.End = lo, hi
		}
		resp.Datasets = append(resp.Datasets, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSplits resolves the query parameters and returns the view.
func (s *Server) handleSplits(w http.ResponseWriter, r *http.Request) {
	v, ok := s.resolveJSON(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type aggregationsResponse struct {
	Column string             `json:"column"`
	Rows   []display.PivotRow `json:"rows"`
}

// handleAggregations returns the data and future data values of one column
// per fold.
func (s *Server) handleAggregations(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("column")
	if column == "" {
		writeError(w, http.StatusBadRequest, "INVALID", "column is required")
		return
	}
	v, ok := s.resolveJSON(w, r)
	if !ok {
		return
	}
	if v.Aggregations == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Aggregations are disabled; PLOT_AGGREGATIONS_PER_FOLD=false.")
		return
	}
	rows, err := v.Aggregations.Pivot(column)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, aggregationsResponse{Column: column, Rows: rows})
}

// resolveJSON runs a render pass for an API request. Failed passes are
// answered with the view and 422.
func (s *Server) resolveJSON(w http.ResponseWriter, r *http.Request) (*dashboard.View, bool) {
	values := r.URL.Query()
	values.Del("column")
	if _, err := query.Parse(values); err != nil {
		var qe *query.Error
		if errors.As(err, &qe) {
			writeError(w, http.StatusBadRequest, "INVALID", qe.Error())
			return nil, false
		}
	}

	state := dashboard.State{Values: values, Limits: s.sessionLimits(r)}
	v := s.dashboard.Resolve(withSession(r, state), state)
	if v.Failed() {
		writeJSON(w, http.StatusUnprocessableEntity, v)
		return nil, false
	}
	return v, true
}

type limitsResponse struct {
	Hard    []config.LimitField `json:"hard"`
	Session []config.LimitField `json:"session"`
	Lowered map[string]bool     `json:"lowered"`
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	hard := s.config.HardLimits()
	session := s.sessionLimits(r)
	writeJSON(w, http.StatusOK, limitsResponse{
		Hard:    hard.Fields(),
		Session: session.Fields(),
		Lowered: session.Lowered(hard),
	})
}

// handleConfig describes every setting, like the print-config command.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Options(true))
}

func (s *Server) handleDatasetsWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.ServeWS(w, r, cache.ReloadTopic)
}
