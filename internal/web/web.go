// Package web renders the portal pages as templ components.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/eligibility"
	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTMXRequestHeader is set by htmx on every request it issues
const HTMXRequestHeader = "HX-Request"

// IsHTMXRequest reports whether the request was initiated by htmx
func IsHTMXRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.EqualFold(r.Header.Get(HTMXRequestHeader), "true")
}

// PlanCard is a plan with its display price
type PlanCard struct {
	types.Plan
	PriceDisplay string
}

// LandingPage is the marketing page
type LandingPage struct {
	FAQ            []types.FaqItem
	Testimonials   []types.Testimonial
	Plans          []PlanCard
	Projection     *pricing.Projection
	MinWeight      float64
	MaxWeight      float64
	PromoThreshold int
}

// LoginPage is the sign-in page
type LoginPage struct {
	Error     string
	Providers []string
}

// DashboardPage is the patient dashboard
type DashboardPage struct {
	View *dashboard.PatientView
}

// AdminPage is the clinician dashboard
type AdminPage struct {
	Overview *dashboard.Overview
	Queue    dashboard.Queue
	Queues   []dashboard.Queue
	Rows     []dashboard.PatientRow
	Team     []*types.Clinician
}

type layoutData struct {
	Title string
	Data  interface{}
}

type page struct {
	title string
	tmpl  *template.Template
}

// Renderer holds the parsed page templates
type Renderer struct {
	pages map[string]*page
}

var pageTitles = map[string]string{
	"landing":   "Medical weight loss",
	"login":     "Sign in",
	"dashboard": "Your dashboard",
	"admin":     "Clinical dashboard",
	"wizard":    "Eligibility check",
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"has":  slices.Contains[[]string],
}

// NewRenderer parses every page against the shared layout
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*page, len(pageTitles))}
	for name, title := range pageTitles {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = &page{title: title, tmpl: tmpl}
	}
	return r, nil
}

// Landing renders the marketing page
func (r *Renderer) Landing(data *LandingPage, partial bool) templ.Component {
	return r.component("landing", data, partial)
}

// Login renders the sign-in page
func (r *Renderer) Login(data *LoginPage, partial bool) templ.Component {
	return r.component("login", data, partial)
}

// Dashboard renders the patient dashboard
func (r *Renderer) Dashboard(data *DashboardPage, partial bool) templ.Component {
	return r.component("dashboard", data, partial)
}

// Admin renders the clinician dashboard
func (r *Renderer) Admin(data *AdminPage, partial bool) templ.Component {
	return r.component("admin", data, partial)
}

// Wizard renders one eligibility session at its current step
func (r *Renderer) Wizard(view *eligibility.SessionView, partial bool) templ.Component {
	return r.component("wizard", view, partial)
}

// component renders the whole document, or only the content block for htmx swaps
func (r *Renderer) component(name string, data interface{}, partial bool) templ.Component {
	p := r.pages[name]
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if partial {
			return p.tmpl.ExecuteTemplate(w, "content", data)
		}
		return p.tmpl.ExecuteTemplate(w, "layout", layoutData{Title: p.title, Data: data})
	})
}
