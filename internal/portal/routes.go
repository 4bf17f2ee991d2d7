package portal

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures HTTP routes for the portal
func (s *Service) setupRoutes(router *mux.Router) {
	router.Use(monitoringMiddleware(s))

	// Pages
	router.HandleFunc("/", s.landingHandler).Methods("GET").Name("landing")
	router.HandleFunc("/login", s.loginHandler).Methods("GET").Name("login")
	router.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET").Name("dashboard")
	router.HandleFunc("/admin", s.adminPageHandler).Methods("GET").Name("admin")

	// Health and metrics
	router.Handle(s.config.Monitoring.HealthPath, s.health.HTTPHandler()).Methods("GET").Name("health")
	if s.config.Monitoring.Enabled {
		router.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler()).Methods("GET").Name("metrics")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	// Content and pricing
	api.HandleFunc("/content/faq", s.faqHandler).Methods("GET")
	api.HandleFunc("/content/testimonials", s.testimonialsHandler).Methods("GET")
	api.HandleFunc("/content/plans", s.plansHandler).Methods("GET")
	api.HandleFunc("/pricing", s.pricingHandler).Methods("GET")
	api.HandleFunc("/pricing/quote", s.quoteHandler).Methods("GET")
	api.HandleFunc("/calculator/projection", s.projectionHandler).Methods("POST")
	api.HandleFunc("/promo/scroll", s.promoScrollHandler).Methods("POST")

	// Eligibility wizard
	api.HandleFunc("/eligibility/sessions", s.createSessionHandler).Methods("POST")
	api.HandleFunc("/eligibility/sessions/{id}", s.getSessionHandler).Methods("GET")
	api.HandleFunc("/eligibility/sessions/{id}/answer", s.answerHandler).Methods("POST")
	api.HandleFunc("/eligibility/sessions/{id}/toggle", s.toggleHandler).Methods("POST")
	api.HandleFunc("/eligibility/sessions/{id}/continue", s.continueHandler).Methods("POST")
	api.HandleFunc("/eligibility/sessions/{id}/back", s.backHandler).Methods("POST")
	api.HandleFunc("/eligibility/sessions/{id}/account", s.accountHandler).Methods("POST")

	// Sign in
	api.HandleFunc("/auth/login", s.patientLoginHandler).Methods("POST")
	api.HandleFunc("/auth/admin", s.adminLoginHandler).Methods("POST")

	// Patient dashboard
	api.HandleFunc("/patient/profile", s.patientProfileHandler).Methods("GET")
	api.HandleFunc("/patient/view", s.patientViewHandler).Methods("GET")
	api.HandleFunc("/patient/photos/{side}", s.uploadPhotoHandler).Methods("POST").Name("upload_photo")
	api.HandleFunc("/patient/submit", s.submitHandler).Methods("POST").Name("submit_for_review")
	api.HandleFunc("/patient/weight", s.logWeightHandler).Methods("POST").Name("log_weight")
	api.HandleFunc("/patient/messages", s.patientMessageHandler).Methods("POST").Name("patient_message")
	api.HandleFunc("/patient/pay", s.payHandler).Methods("POST").Name("pay")

	// Clinician dashboard
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminAuthMiddleware)
	admin.HandleFunc("/overview", s.overviewHandler).Methods("GET")
	admin.HandleFunc("/patients", s.listPatientsHandler).Methods("GET")
	admin.HandleFunc("/patients/{id}", s.getPatientHandler).Methods("GET")
	admin.HandleFunc("/patients/{id}/{action:approve|request-info|reject|reject-photos|dispatch|mark-paid}",
		s.patientDecisionHandler).Methods("POST").Name("patient_decision")
	admin.HandleFunc("/patients/{id}/stage", s.forceStageHandler).Methods("POST").Name("force_stage")
	admin.HandleFunc("/patients/{id}/notes", s.addNoteHandler).Methods("POST").Name("add_note")
	admin.HandleFunc("/patients/{id}/messages", s.adminMessageHandler).Methods("POST").Name("admin_message")
	admin.HandleFunc("/export.xlsx", s.exportHandler).Methods("GET")
	admin.HandleFunc("/team", s.listTeamHandler).Methods("GET")
	admin.HandleFunc("/team", s.inviteHandler).Methods("POST")
	admin.HandleFunc("/team/{id:[0-9]+}", s.removeClinicianHandler).Methods("DELETE")

	s.logger.Info("Portal routes configured")
}

// routeName names the matched route for spans, falling back to the path
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
		return route.GetName()
	}
	return r.URL.Path
}
