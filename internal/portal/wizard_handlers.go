package portal

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weighright/portal/internal/eligibility"
	"github.com/weighright/portal/internal/web"
)

type answerRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type toggleRequest struct {
	Field  string `json:"field"`
	Option string `json:"option"`
}

// createSessionHandler starts an eligibility wizard
func (s *Service) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	view := s.sessions.Create()
	s.metrics.SetWizardSessions(s.sessions.Len())
	s.logger.WithContext(r.Context()).WithField("session_id", view.ID).Debug("Eligibility session started")
	s.writeSession(w, r, http.StatusCreated, view)
}

// getSessionHandler returns a wizard's current step
func (s *Service) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, view)
}

// answerHandler records a single-valued answer
func (s *Service) answerHandler(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.updateSession(w, r, func(sess *eligibility.Session) error {
		return sess.Answer(req.Field, req.Value)
	})
}

// toggleHandler flips one option of a multi-select step
func (s *Service) toggleHandler(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	s.updateSession(w, r, func(sess *eligibility.Session) error {
		return sess.Toggle(req.Field, req.Option)
	})
}

func (s *Service) continueHandler(w http.ResponseWriter, r *http.Request) {
	s.updateSession(w, r, (*eligibility.Session).Continue)
}

func (s *Service) backHandler(w http.ResponseWriter, r *http.Request) {
	s.updateSession(w, r, (*eligibility.Session).Back)
}

// accountHandler completes the wizard
func (s *Service) accountHandler(w http.ResponseWriter, r *http.Request) {
	var req eligibility.AccountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	s.updateSession(w, r, func(sess *eligibility.Session) error {
		if err := sess.CreateAccount(req); err != nil {
			return err
		}
		s.logger.Audit("visitor", "account_created", "eligibility_session:"+id, true, nil)
		return nil
	})
}

func (s *Service) updateSession(w http.ResponseWriter, r *http.Request, fn func(*eligibility.Session) error) {
	view, err := s.sessions.Update(mux.Vars(r)["id"], fn)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, view)
}

// writeSession renders the wizard fragment for htmx and JSON otherwise
func (s *Service) writeSession(w http.ResponseWriter, r *http.Request, status int, view *eligibility.SessionView) {
	if web.IsHTMXRequest(r) {
		s.render(w, r, s.renderer.Wizard(view, true))
		return
	}
	s.writeJSONResponse(w, status, view)
}
