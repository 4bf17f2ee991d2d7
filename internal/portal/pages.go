package portal

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/internal/web"
	"github.com/weighright/portal/pkg/types"
)

// socialProviders are the sign-in buttons shown on the login page
var socialProviders = []string{"Google", "Apple"}

// defaultProjectionKg is the calculator's starting weight
const defaultProjectionKg = 95

func (s *Service) landingHandler(w http.ResponseWriter, r *http.Request) {
	proj, err := pricing.Project(pricing.ProjectionRequest{
		WeightKg:   defaultProjectionKg,
		Medication: string(types.MedicationMounjaro),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.render(w, r, s.renderer.Landing(s.landingPage(proj), web.IsHTMXRequest(r)))
}

func (s *Service) loginHandler(w http.ResponseWriter, r *http.Request) {
	page := &web.LoginPage{Providers: socialProviders}
	if r.URL.Query().Get("error") == "pin" {
		page.Error = "Invalid PIN"
	}
	s.render(w, r, s.renderer.Login(page, web.IsHTMXRequest(r)))
}

func (s *Service) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.patientView(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.render(w, r, s.renderer.Dashboard(&web.DashboardPage{View: view}, web.IsHTMXRequest(r)))
}

// adminPageHandler renders the clinician dashboard; without a session it sends the visitor to sign in
func (s *Service) adminPageHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.clinicianFromRequest(r); err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	queue := dashboard.Queue(r.URL.Query().Get("queue"))
	if queue == "" {
		queue = dashboard.QueueReview
	}
	rows, err := s.admin.Rows(r.Context(), queue)
	if err != nil {
		s.writeError(w, err)
		return
	}
	overview, err := s.admin.Overview(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	team, err := s.roster.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.render(w, r, s.renderer.Admin(&web.AdminPage{
		Overview: overview,
		Queue:    queue,
		Queues:   []dashboard.Queue{dashboard.QueueReview, dashboard.QueueDirectory, dashboard.QueuePayments},
		Rows:     rows,
		Team:     team,
	}, web.IsHTMXRequest(r)))
}

func (s *Service) landingPage(proj *pricing.Projection) *web.LandingPage {
	return &web.LandingPage{
		FAQ:            s.catalog.FAQ,
		Testimonials:   s.catalog.Testimonials,
		Plans:          s.planCards(),
		Projection:     proj,
		MinWeight:      pricing.MinWeightKg,
		MaxWeight:      pricing.MaxWeightKg,
		PromoThreshold: s.config.Portal.PromoScrollThreshold,
	}
}

// render writes an HTML component through templ's handler
func (s *Service) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	templ.Handler(c, templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to render page")
			http.Error(w, "failed to render page", http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r)
}
