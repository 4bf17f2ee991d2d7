package portal

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/web"
	"github.com/weighright/portal/pkg/types"
)

type stageRequest struct {
	Stage types.PatientStage `json:"stage"`
}

type noteRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
	Role    string `json:"role"`
}

type inviteRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// adminActions are the one-click decisions on a patient row
func (s *Service) adminActions() map[string]func(context.Context, string) (*types.PatientProfile, error) {
	return map[string]func(context.Context, string) (*types.PatientProfile, error){
		"approve":       s.journey.Approve,
		"request-info":  s.journey.RequestInfo,
		"reject":        s.journey.Reject,
		"reject-photos": s.journey.RejectPhotos,
		"dispatch":      s.journey.Dispatch,
		"mark-paid":     s.journey.MarkPaid,
	}
}

func (s *Service) overviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := s.admin.Overview(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, overview)
}

// listPatientsHandler returns one admin queue
func (s *Service) listPatientsHandler(w http.ResponseWriter, r *http.Request) {
	queue := dashboard.Queue(r.URL.Query().Get("queue"))
	if queue == "" {
		queue = dashboard.QueueAll
	}
	rows, err := s.admin.Rows(r.Context(), queue)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"queue":    queue,
		"patients": rows,
		"total":    len(rows),
	})
}

func (s *Service) getPatientHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.admin.Patient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, p)
}

// patientDecisionHandler runs a one-click admin action named in the path
func (s *Service) patientDecisionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action, ok := s.adminActions()[vars["action"]]
	if !ok {
		s.writeError(w, types.NewNotFoundError(types.ErrCodeNotFound, "unknown action"))
		return
	}
	s.adminAction(w, r, vars["id"], action)
}

func (s *Service) forceStageHandler(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.adminAction(w, r, mux.Vars(r)["id"], func(ctx context.Context, id string) (*types.PatientProfile, error) {
		return s.journey.ForceStage(ctx, id, req.Stage)
	})
}

func (s *Service) addNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.adminAction(w, r, mux.Vars(r)["id"], func(ctx context.Context, id string) (*types.PatientProfile, error) {
		return s.journey.AddNote(ctx, id, req.Content, req.Author, req.Role)
	})
}

func (s *Service) adminMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.adminAction(w, r, mux.Vars(r)["id"], func(ctx context.Context, id string) (*types.PatientProfile, error) {
		return s.journey.AdminMessage(ctx, id, req.Content)
	})
}

// exportHandler downloads the patient directory as a spreadsheet
func (s *Service) exportHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.admin.Rows(r.Context(), dashboard.QueueDirectory)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="directory.xlsx"`)
	if err := WriteDirectory(w, rows); err != nil {
		s.logger.WithError(err).Error("Failed to write directory export")
		return
	}
	s.logger.Audit(actor(r), "export_directory", "patients", true,
		map[string]interface{}{"rows": len(rows)})
}

func (s *Service) listTeamHandler(w http.ResponseWriter, r *http.Request) {
	team, err := s.roster.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, team)
}

func (s *Service) inviteHandler(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.roster.Invite(r.Context(), req.Name, req.Email, req.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusCreated, c)
}

func (s *Service) removeClinicianHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "clinician id must be a number", nil))
		return
	}
	if err := s.roster.Remove(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminAction runs one journey operation and returns the clinician's view of the record
func (s *Service) adminAction(w http.ResponseWriter, r *http.Request, id string, fn func(context.Context, string) (*types.PatientProfile, error)) {
	ctx, span := s.tracing.StartProfileSpan(r.Context(), routeName(r), id)
	defer span.End()

	if _, err := fn(ctx, id); err != nil {
		s.tracing.RecordError(span, err)
		s.writeError(w, err)
		return
	}
	p, err := s.admin.Patient(ctx, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if web.IsHTMXRequest(r) {
		w.Header().Set("HX-Refresh", "true")
	}
	s.writeJSONResponse(w, http.StatusOK, p)
}
