package portal

import (
	"net/http"
	"strings"

	"github.com/weighright/portal/internal/auth"
	"github.com/weighright/portal/internal/web"
	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// adminCookie carries the clinician token for page loads
const adminCookie = "wr_admin"

// patientLoginHandler signs the demo patient in after the simulated delay.
// Credentials are not checked.
func (s *Service) patientLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req types.PatientLoginRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, err)
		return
	}

	method := "password"
	if req.Provider != "" {
		method = strings.ToLower(req.Provider)
	}

	if err := s.pause(r.Context(), config.Millis(s.config.Auth.PatientLoginDelay)); err != nil {
		s.metrics.RecordAuthAttempt(method, "cancelled")
		return
	}

	s.metrics.RecordAuthAttempt(method, "success")
	s.logger.Audit(s.config.Portal.DemoPatientID, "patient_login", "dashboard", true,
		map[string]interface{}{"method": method})

	if web.IsHTMXRequest(r) {
		w.Header().Set("HX-Redirect", "/dashboard")
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]string{
		"patientId": s.config.Portal.DemoPatientID,
		"redirect":  "/dashboard",
	})
}

// adminLoginHandler exchanges the clinician PIN for a bearer token
func (s *Service) adminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req types.AdminLoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}

	ctx, span := s.tracing.StartAuthSpan(r.Context(), "admin_login")
	defer span.End()

	token, err := s.auth.AdminLogin(ctx, req.PIN, clientIP(r))
	if err != nil {
		s.metrics.RecordAuthAttempt("pin", "failure")
		s.tracing.RecordError(span, err)
		s.writeError(w, err)
		return
	}
	s.metrics.RecordAuthAttempt("pin", "success")

	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    token.AccessToken,
		Path:     "/",
		MaxAge:   int(token.ExpiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	if web.IsHTMXRequest(r) {
		w.Header().Set("HX-Redirect", "/admin")
	}
	s.writeJSONResponse(w, http.StatusOK, token)
}

// clinicianFromRequest validates the bearer header, falling back to the session cookie
func (s *Service) clinicianFromRequest(r *http.Request) (*types.UserClaims, error) {
	token := ""
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid authorization header format")
		}
		token = parts[1]
	} else if c, err := r.Cookie(adminCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "missing authorization header")
	}
	return s.auth.Authorize(token)
}

// actor returns the clinician recorded on the request, or the shared team id
func actor(r *http.Request) string {
	if id, ok := r.Context().Value(logger.ActorKey).(string); ok && id != "" {
		return id
	}
	return auth.ClinicianUserID
}
