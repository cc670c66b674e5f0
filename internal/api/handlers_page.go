package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
	"github.com/aaronlmathis/timesplit/internal/metrics"
)

// handleIndex renders the dashboard preselected by the query parameters.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if len(values) > 0 && !s.config.Features.ProcessQueryParams {
		s.logger.Info("Rejected query parameters", zap.String("query", r.URL.RawQuery))
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{
			Title:  "Query parameters are not allowed.",
			Detail: "Remove these parameters from the URL and try again.",
		})
		return
	}
	s.renderView(w, r, dashboard.State{Values: values, Limits: s.sessionLimits(r)})
}

// handleSubmit re-renders the dashboard from the submitted form.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{Title: "Bad form.", Detail: err.Error()})
		return
	}
	s.renderView(w, r, dashboard.State{Values: compact(r.PostForm), Limits: s.sessionLimits(r)})
}

// compact drops blank fields, which browsers submit for empty inputs.
func compact(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vs := range values {
		if len(vs) > 0 && strings.TrimSpace(vs[len(vs)-1]) != "" {
			out[key] = vs
		}
	}
	return out
}

func (s *Server) renderView(w http.ResponseWriter, r *http.Request, state dashboard.State) {
	v := s.dashboard.Resolve(withSession(r, state), state)
	s.render(w, http.StatusOK, "index", s.viewPage(v))
}

// handleTweaks stores lowered limits for the session. Raising a value above
// the server limit is rejected.
func (s *Server) handleTweaks(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{Title: "Bad form.", Detail: err.Error()})
		return
	}
	state := stateFrom(r.PostForm.Get("state"))

	if r.PostForm.Get("reset") != "" {
		s.clearLimitsCookie(w)
		s.renderView(w, r, dashboard.State{Values: state, Limits: s.limits})
		return
	}

	requested := s.limits
	for _, f := range requested.Fields() {
		raw := r.PostForm.Get(f.Key)
		value := 0
		if f.Bool {
			if raw == "true" || raw == "on" {
				value = 1
			}
		} else {
			n, err := strconv.Atoi(raw)
			if err != nil {
				s.renderError(w, http.StatusBadRequest, &dashboard.Problem{Title: fmt.Sprintf("Bad value %s=%q.", f.Key, raw)})
				return
			}
			value = n
		}
		requested, _ = requested.With(f.Key, value)
	}

	if err := s.config.HardLimits().Check(requested); err != nil {
		var le *config.LimitError
		if errors.As(err, &le) {
			metrics.RecordLimitViolation(le.Key)
			s.logger.Warn("Rejected session limit",
				zap.String("key", le.Key),
				zap.Int("value", le.Value),
				zap.Int("max", le.Max),
				zap.String("remote_ip", r.RemoteAddr))
		}
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{
			Title:  "Limits may only be lowered.",
			Detail: err.Error(),
		})
		return
	}

	s.logger.Debug("Updated session limits", zap.String("limits", encodeLimits(requested)))
	s.setLimitsCookie(w, requested)
	s.renderView(w, r, dashboard.State{Values: state, Limits: requested})
}
