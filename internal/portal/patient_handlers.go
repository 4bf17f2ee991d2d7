package portal

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/web"
	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/types"
)

type weightRequest struct {
	WeightKg float64 `json:"weightKg"`
}

type messageRequest struct {
	Content string `json:"content"`
}

// patientProfileHandler returns the signed-in patient's record
func (s *Service) patientProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), s.config.Portal.DemoPatientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, p)
}

// patientViewHandler returns the derived dashboard state
func (s *Service) patientViewHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.patientView(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, view)
}

func (s *Service) uploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	side := mux.Vars(r)["side"]
	s.patientAction(w, r, func(ctx context.Context, id string) (*types.PatientProfile, error) {
		return s.journey.UploadPhoto(ctx, id, side)
	})
}

// submitHandler sends the application for clinical review after the simulated delay
func (s *Service) submitHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.pause(r.Context(), config.Millis(s.config.Portal.SubmitDelay)); err != nil {
		return
	}
	s.patientAction(w, r, s.journey.SubmitForReview)
}

func (s *Service) logWeightHandler(w http.ResponseWriter, r *http.Request) {
	var req weightRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.patientAction(w, r, func(ctx context.Context, id string) (*types.PatientProfile, error) {
		return s.journey.LogWeight(ctx, id, req.WeightKg)
	})
}

func (s *Service) patientMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.patientAction(w, r, func(ctx context.Context, id string) (*types.PatientProfile, error) {
		return s.journey.SendMessage(ctx, id, req.Content)
	})
}

func (s *Service) payHandler(w http.ResponseWriter, r *http.Request) {
	s.patientAction(w, r, s.journey.Pay)
}

// patientAction runs one journey operation for the demo patient and returns the new view
func (s *Service) patientAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*types.PatientProfile, error)) {
	id := s.config.Portal.DemoPatientID
	ctx, span := s.tracing.StartProfileSpan(r.Context(), routeName(r), id)
	defer span.End()

	p, err := fn(ctx, id)
	if err != nil {
		s.tracing.RecordError(span, err)
		s.writeError(w, err)
		return
	}
	view, err := dashboard.NewPatientView(p, s.formatter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if web.IsHTMXRequest(r) {
		w.Header().Set("HX-Refresh", "true")
	}
	s.writeJSONResponse(w, http.StatusOK, view)
}

func (s *Service) patientView(r *http.Request) (*dashboard.PatientView, error) {
	p, err := s.store.Get(r.Context(), s.config.Portal.DemoPatientID)
	if err != nil {
		return nil, err
	}
	return dashboard.NewPatientView(p, s.formatter)
}
