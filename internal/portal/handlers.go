package portal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/internal/web"
	"github.com/weighright/portal/pkg/types"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed API call
type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// faqHandler serves the FAQ entries
func (s *Service) faqHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.catalog.FAQ)
}

// testimonialsHandler serves the patient stories
func (s *Service) testimonialsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.catalog.Testimonials)
}

// plansHandler serves the treatment plans with display prices
func (s *Service) plansHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.planCards())
}

// pricingHandler serves the full dose price table
func (s *Service) pricingHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"currency":    pricing.Currency.String(),
		"medications": pricing.Catalog(),
	})
}

// quoteHandler prices one strength
func (s *Service) quoteHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	med, err := pricing.ParseMedication(q.Get("med"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	quote, err := s.formatter.Quote(med, q.Get("dose"), types.PatientType(q.Get("type")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, quote)
}

// projectionHandler runs the landing page calculator
func (s *Service) projectionHandler(w http.ResponseWriter, r *http.Request) {
	var req pricing.ProjectionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	proj, err := pricing.Project(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if web.IsHTMXRequest(r) {
		s.render(w, r, s.renderer.Landing(s.landingPage(proj), false))
		return
	}
	s.writeJSONResponse(w, http.StatusOK, proj)
}

type promoRequest struct {
	ScrollY float64 `json:"scrollY"`
}

// promoScrollHandler decides whether the landing promo opens
func (s *Service) promoScrollHandler(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	visitor := s.visitorID(w, r)
	s.writeJSONResponse(w, http.StatusOK, map[string]bool{
		"show": s.promo.Observe(visitor, req.ScrollY),
	})
}

func (s *Service) planCards() []web.PlanCard {
	cards := make([]web.PlanCard, 0, len(s.catalog.Plans))
	for _, p := range s.catalog.Plans {
		cards = append(cards, web.PlanCard{Plan: p, PriceDisplay: s.formatter.Pounds(p.Price)})
	}
	return cards
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when optional.
func decodeJSON(r *http.Request, dst interface{}, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return types.NewValidationError(types.ErrCodeInvalidInput, "request body is required", nil)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return types.NewValidationError(types.ErrCodeInvalidInput, "request body is required", nil)
		}
		return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request body",
			map[string]interface{}{"reason": err.Error()})
	}
	return nil
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError maps err to its status code and writes the error body
func (s *Service) writeError(w http.ResponseWriter, err error) {
	s.writeErrorResponse(w, types.HTTPStatus(err), "Internal server error", err)
}

// writeErrorResponse writes an error response. Internal causes are logged, not returned.
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := errorResponse{
		Error:  message,
		Code:   types.ErrCodeInternalError,
		Status: statusCode,
	}

	var pe *types.PortalError
	if errors.As(err, &pe) && pe.Type != types.ErrorTypeInternal {
		resp.Error = pe.Message
		resp.Code = pe.Code
		resp.Details = pe.Details
	}

	if statusCode >= http.StatusInternalServerError {
		s.metrics.RecordSystemError("internal", "portal")
		s.logger.WithError(err).Error(message)
	}

	s.writeJSONResponse(w, statusCode, resp)
}
