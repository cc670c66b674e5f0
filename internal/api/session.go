package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
	"github.com/aaronlmathis/timesplit/internal/logging"
	"github.com/aaronlmathis/timesplit/internal/query"
)

// LimitsCookie holds the limits a user lowered for their own session.
const LimitsCookie = "timesplit_limits"

// sessionLimits returns the session limits of r. Values above the hard
// limits are ignored, so lowering a hard limit takes effect immediately.
func (s *Server) sessionLimits(r *http.Request) config.Limits {
	limits := s.limits
	c, err := r.Cookie(LimitsCookie)
	if err != nil {
		return limits
	}
	values, err := url.ParseQuery(c.Value)
	if err != nil {
		s.logger.Debug("Ignoring malformed limits cookie", zap.Error(err))
		return limits
	}

	hard := s.config.HardLimits().Fields()
	for i, f := range limits.Fields() {
		raw := values.Get(f.Key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n > hard[i].Value || n < f.Min() {
			continue
		}
		if next, err := limits.With(f.Key, n); err == nil {
			limits = next
		}
	}
	return limits
}

func encodeLimits(limits config.Limits) string {
	values := url.Values{}
	for _, f := range limits.Fields() {
		values.Set(f.Key, strconv.Itoa(f.Value))
	}
	return values.Encode()
}

func (s *Server) setLimitsCookie(w http.ResponseWriter, limits config.Limits) {
	http.SetCookie(w, &http.Cookie{
		Name:     LimitsCookie,
		Value:    encodeLimits(limits),
		Path:     s.basePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearLimitsCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     LimitsCookie,
		Path:     s.basePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// withSession attaches the request id, the session limits and the parsed
// query parameters to the performance log entries of the pass.
func withSession(r *http.Request, state dashboard.State) context.Context {
	var fields []zap.Field
	for _, f := range state.Limits.Fields() {
		fields = append(fields, zap.Int(f.Key, f.Value))
	}
	if params, err := query.Parse(state.Values); err == nil {
		fields = append(fields, params.Fields("query.")...)
	}
	return logging.WithSession(r.Context(), logging.Session{
		ID:       middleware.GetReqID(r.Context()),
		RemoteIP: r.RemoteAddr,
		Fields:   fields,
	})
}

// stateFrom decodes the hidden state field carried by the secondary forms.
func stateFrom(raw string) url.Values {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return url.Values{}
	}
	return values
}
