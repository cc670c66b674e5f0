package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/cache"
	"github.com/aaronlmathis/timesplit/internal/charts"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
	"github.com/aaronlmathis/timesplit/internal/display"
	"github.com/aaronlmathis/timesplit/internal/version"
)

//go:embed web
var webFS embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return sub
}

var funcMap = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.DateTime)
	},
	"pathEscape": url.PathEscape,
}

// parsePages parses every page together with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"index", "error"} {
		t, err := template.New(name).Funcs(funcMap).ParseFS(webFS, "web/templates/layout.html", "web/templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// page is the data of a rendered page.
type page struct {
	Base    string
	Config  *config.Config
	Version version.Info
	About   string

	View    *dashboard.View
	Problem *dashboard.Problem
	// Query reproduces the view in figure and API links.
	Query       template.URL
	AggColumns  []string
	LimitFields []config.LimitField
	HardLimits  []config.LimitField

	BarLabels       []string
	TypePreferences []display.TypePreference
	DateInput       string

	Status *cache.Status
	Debug  string
}

// Value returns the submitted value of key, falling back to the resolved
// splitting parameters.
func (p *page) Value(key string) string {
	if p.View == nil {
		return ""
	}
	if v := p.View.State.Get(key); v != "" {
		return v
	}
	return p.View.KwargsText[key]
}

// RangeValue formats bound i of the generated range for the date inputs.
func (p *page) RangeValue(i int) string {
	if p.View == nil || i < 0 || i > 1 || p.View.Range[i].IsZero() {
		return ""
	}
	if p.DateInput == "date" {
		return p.View.Range[i].Format(time.DateOnly)
	}
	return p.View.Range[i].Format("2006-01-02T15:04")
}

// Figures reports whether aggregation figures are shown.
func (p *page) Figures() bool {
	return p.View != nil && p.View.Aggregations != nil && p.View.Limits.PlotAggregationsPerFold
}

var barLabelChoices = []string{
	string(charts.LabelHours), string(charts.LabelDays), string(charts.LabelRows), "none",
}

// BarLabelSelected reports whether choice is the current bar label option.
func (p *page) BarLabelSelected(choice string) bool {
	if p.View == nil {
		return false
	}
	if p.View.BarLabels == charts.LabelNone {
		return choice == "none"
	}
	return choice == string(p.View.BarLabels)
}

func (s *Server) newPage() *page {
	info := version.Get()
	p := &page{
		Base:            s.basePath(),
		Config:          s.config,
		Version:         info,
		About:           display.About(s.config, info.Short()),
		HardLimits:      s.config.HardLimits().Fields(),
		BarLabels:       barLabelChoices,
		TypePreferences: display.TypePreferences,
		DateInput:       "datetime-local",
	}
	if s.config.Features.DateOnly {
		p.DateInput = "date"
	}
	if s.datasets != nil && s.config.Features.Debug {
		status := s.datasets.Status()
		p.Status = &status
	}
	return p
}

func (s *Server) viewPage(v *dashboard.View) *page {
	p := s.newPage()
	p.View = v
	p.Query = template.URL(v.State.Encode())
	p.LimitFields = v.Limits.Fields()
	for column := range v.AggOptions {
		p.AggColumns = append(p.AggColumns, column)
	}
	sort.Strings(p.AggColumns)

	if s.config.Features.Debug {
		if b, err := json.MarshalIndent(v, "", "  "); err == nil {
			p.Debug = string(b)
		}
	}
	return p
}

// render executes a page into a buffer, so a template error never leaves
// a partial page behind.
func (s *Server) render(w http.ResponseWriter, status int, name string, p *page) {
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		s.logger.Error("Failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, problem *dashboard.Problem) {
	p := s.newPage()
	p.Problem = problem
	s.render(w, status, "error", p)
}
