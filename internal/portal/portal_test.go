package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/eligibility"
	"github.com/weighright/portal/internal/profile"
	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/monitoring"
	"github.com/weighright/portal/pkg/types"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Portal.SubmitDelay = 0
	cfg.Auth.PatientLoginDelay = 0
	cfg.Auth.PINAttemptsPerMin = 3
	cfg.RateLimit.Enabled = false
	cfg.LogLevel = "error"
	return cfg
}

func setupTestService(t *testing.T, mutate ...func(*config.Config)) (*Service, http.Handler) {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	svc, err := New(context.Background(), cfg, logger.NewWithOutput("error", io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc, svc.Handler()
}

type testRequest struct {
	method  string
	path    string
	body    interface{}
	token   string
	headers map[string]string
	cookies []*http.Cookie
}

func do(t *testing.T, h http.Handler, req testRequest) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.RemoteAddr = "192.0.2.10:4321"
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var resp errorResponse
	decode(t, w, &resp)
	assert.Equal(t, code, resp.Code)
	assert.Equal(t, status, resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func adminToken(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": "8888"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var token types.AuthToken
	decode(t, w, &token)
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

func TestPages(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "GET", path: "/"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<!doctype html>")
	assert.Contains(t, w.Body.String(), "Start consultation")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = do(t, h, testRequest{method: "GET", path: "/", headers: map[string]string{"HX-Request": "true"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<!doctype html>")

	w = do(t, h, testRequest{method: "GET", path: "/dashboard"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi, John!")

	w = do(t, h, testRequest{method: "GET", path: "/login?error=pin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid PIN")
}

func TestAdminPageRequiresSession(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "GET", path: "/admin"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	login := do(t, h, testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": "8888"}})
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = do(t, h, testRequest{method: "GET", path: "/admin?queue=review", cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sarah Miller")
}

func TestContentAndPricing(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "GET", path: "/api/v1/content/faq"})
	require.Equal(t, http.StatusOK, w.Code)
	var faq []types.FaqItem
	decode(t, w, &faq)
	assert.Len(t, faq, 4)

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/pricing/quote?med=Mounjaro&dose=7.5mg"})
	require.Equal(t, http.StatusOK, w.Code)
	var quote map[string]interface{}
	decode(t, w, &quote)
	assert.Equal(t, float64(229), quote["price"])
	assert.Equal(t, "£229", quote["display"])

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/pricing/quote?med=Mounjaro&dose=9mg"})
	assertError(t, w, http.StatusNotFound, types.ErrCodeUnknownDose)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/calculator/projection",
		body: map[string]interface{}{"weightKg": 100, "medication": "mounjaro"}})
	require.Equal(t, http.StatusOK, w.Code)
	var proj map[string]interface{}
	decode(t, w, &proj)
	assert.Equal(t, "21", proj["lost"])
}

func TestPromoShowsOncePerVisitor(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/promo/scroll", body: map[string]float64{"scrollY": 120}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"show":false}`, w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 3600, cookies[0].MaxAge, "the cookie lives as long as the promo mark")

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/promo/scroll", body: map[string]float64{"scrollY": 450}, cookies: cookies})
	assert.JSONEq(t, `{"show":true}`, w.Body.String())
	refreshed := w.Result().Cookies()
	require.Len(t, refreshed, 1)
	assert.Equal(t, cookies[0].Value, refreshed[0].Value)
	assert.Equal(t, 3600, refreshed[0].MaxAge)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/promo/scroll", body: map[string]float64{"scrollY": 900}, cookies: cookies})
	assert.JSONEq(t, `{"show":false}`, w.Body.String())
}

func TestPromoGateSweep(t *testing.T) {
	g := NewPromoGate(400, time.Hour)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	assert.False(t, g.Observe("v1", 400), "the threshold itself does not open the promo")
	assert.True(t, g.Observe("v1", 401))
	assert.True(t, g.Observe("v2", 800))

	// v1 keeps scrolling, v2 goes quiet
	now = now.Add(50 * time.Minute)
	assert.False(t, g.Observe("v1", 0))
	now = now.Add(50 * time.Minute)
	assert.False(t, g.Observe("v1", 900))

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, g.Sweep(), "only the idle visitor is forgotten")
	assert.False(t, g.Observe("v1", 1200), "an active visitor never sees the promo twice")

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, g.Sweep())
	assert.Equal(t, 0, g.Len())
}

func TestEligibilityWizard(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/eligibility/sessions"})
	require.Equal(t, http.StatusCreated, w.Code)
	var view eligibility.SessionView
	decode(t, w, &view)
	require.NotEmpty(t, view.ID)
	base := "/api/v1/eligibility/sessions/" + view.ID

	steps := []testRequest{
		{method: "POST", path: base + "/continue"},
		{method: "POST", path: base + "/answer", body: answerRequest{Field: eligibility.FieldGender, Value: "Male"}},
		{method: "POST", path: base + "/answer", body: answerRequest{Field: eligibility.FieldHeight, Value: "170"}},
		{method: "POST", path: base + "/answer", body: answerRequest{Field: eligibility.FieldWeight, Value: "85"}},
		{method: "POST", path: base + "/continue"},
	}
	for _, step := range steps {
		w = do(t, h, step)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = do(t, h, testRequest{method: "POST", path: base + "/answer", body: answerRequest{Field: eligibility.FieldEthnicity, Value: "Martian"}})
	assertError(t, w, http.StatusBadRequest, types.ErrCodeInvalidInput)

	w = do(t, h, testRequest{method: "POST", path: base + "/answer", body: answerRequest{Field: eligibility.FieldEthnicity, Value: "White"}})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.True(t, view.NotEligible)
	assert.Equal(t, eligibility.VerdictNotEligible, view.Eligible)

	w = do(t, h, testRequest{method: "POST", path: base + "/continue"})
	assertError(t, w, http.StatusConflict, types.ErrCodeNotEligible)

	w = do(t, h, testRequest{method: "GET", path: base, headers: map[string]string{"HX-Request": "true"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "prescribe for you right now")

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/eligibility/sessions/missing"})
	assertError(t, w, http.StatusNotFound, types.ErrCodeNotFound)

	w = do(t, h, testRequest{method: "GET", path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `eligibility_verdicts_total{result="not_eligible"`)
}

func TestPatientLogin(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/auth/login"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"patientId":"882910","redirect":"/dashboard"}`, w.Body.String())

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/auth/login", body: map[string]string{"provider": "Google"},
		headers: map[string]string{"HX-Request": "true"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("HX-Redirect"))
}

func TestPatientLoginHonoursCancellation(t *testing.T) {
	svc, _ := setupTestService(t)
	svc.config.Auth.PatientLoginDelay = 60000

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest("POST", "/api/v1/auth/login", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		svc.patientLoginHandler(w, r)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("login did not return after the request was cancelled")
	}
}

func TestAdminLogin(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": "1234"}})
	assertError(t, w, http.StatusUnauthorized, types.ErrCodeAuthenticationFailed)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": "8888"},
		headers: map[string]string{"HX-Request": "true"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("HX-Redirect"))

	for i := 0; i < 3; i++ {
		do(t, h, testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": "0000"}})
	}
	w = do(t, h, testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": "8888"}})
	assertError(t, w, http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "GET", path: "/api/v1/admin/overview"})
	assertError(t, w, http.StatusUnauthorized, types.ErrCodeAuthenticationFailed)

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/admin/overview", token: "not-a-token"})
	assertError(t, w, http.StatusUnauthorized, types.ErrCodeAuthenticationFailed)

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/admin/overview",
		headers: map[string]string{"Authorization": "Basic abc"}})
	assertError(t, w, http.StatusUnauthorized, types.ErrCodeAuthenticationFailed)

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/admin/overview", token: adminToken(t, h)})
	require.Equal(t, http.StatusOK, w.Code)
	var overview dashboard.Overview
	decode(t, w, &overview)
	assert.Equal(t, 2, overview.PendingReview)
	assert.Equal(t, 2, overview.ActivePatients)
}

func TestPatientJourneyEndToEnd(t *testing.T) {
	_, h := setupTestService(t)
	token := adminToken(t, h)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/patient/submit"})
	assertError(t, w, http.StatusConflict, types.ErrCodePhotosMissing)

	for _, side := range []string{"front", "side"} {
		w = do(t, h, testRequest{method: "POST", path: "/api/v1/patient/photos/" + side})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = do(t, h, testRequest{method: "POST", path: "/api/v1/patient/photos/back"})
	assertError(t, w, http.StatusBadRequest, types.ErrCodeInvalidInput)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/patient/submit"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view dashboard.PatientView
	decode(t, w, &view)
	assert.Equal(t, types.StageReview, view.Profile.Stage)
	assert.Equal(t, "In Clinical Review", view.Status.Title)

	// The clinician sees the patient's change without any refresh step
	w = do(t, h, testRequest{method: "GET", path: "/api/v1/admin/patients?queue=review", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var queue struct {
		Patients []dashboard.PatientRow `json:"patients"`
	}
	decode(t, w, &queue)
	require.NotEmpty(t, queue.Patients)
	assert.Equal(t, "882910", queue.Patients[0].ID)
	assert.Equal(t, types.StageReview, queue.Patients[0].Stage)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882910/approve", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882910/messages", token: token,
		body: messageRequest{Content: "Approved, please complete payment."}})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/patient/view"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, types.StagePayment, view.Profile.Stage)
	assert.True(t, view.Status.CanPay)
	require.NotEmpty(t, view.Profile.Messages)
	assert.Equal(t, "Approved, please complete payment.", view.Profile.Messages[len(view.Profile.Messages)-1].Content)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/patient/pay"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.True(t, view.Active)
	assert.Equal(t, types.PaymentPaid, view.Profile.PaymentStatus)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/patient/weight", body: weightRequest{WeightKg: 90.5}})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, 90.5, view.Profile.WeightHistory.Current)
	assert.False(t, view.Profile.Alerts.WeightDue)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/patient/messages", body: messageRequest{Content: "   "}})
	assertError(t, w, http.StatusBadRequest, types.ErrCodeInvalidInput)
}

func TestAdminDispatchGating(t *testing.T) {
	_, h := setupTestService(t)
	token := adminToken(t, h)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882109/dispatch", token: token})
	assertError(t, w, http.StatusConflict, types.ErrCodePaymentRequired)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882105/dispatch", token: token})
	assertError(t, w, http.StatusConflict, types.ErrCodeAlreadyDispatched)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882109/mark-paid", token: token})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882109/dispatch", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p types.PatientProfile
	decode(t, w, &p)
	assert.Equal(t, types.DispatchDispatched, p.DispatchStatus)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/nobody/approve", token: token})
	assertError(t, w, http.StatusNotFound, types.ErrCodeNotFound)
}

func TestAdminRecordEditing(t *testing.T) {
	_, h := setupTestService(t)
	token := adminToken(t, h)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882101/stage", token: token,
		body: stageRequest{Stage: "paused"}})
	assertError(t, w, http.StatusBadRequest, types.ErrCodeInvalidStage)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882101/stage", token: token,
		body: stageRequest{Stage: types.StageActive}})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882101/notes", token: token,
		body: noteRequest{Content: "Reviewed BMI evidence."}})
	require.Equal(t, http.StatusOK, w.Code)
	var p types.PatientProfile
	decode(t, w, &p)
	require.NotEmpty(t, p.Notes)
	assert.Equal(t, "Reviewed BMI evidence.", p.Notes[0].Content)
	assert.Equal(t, "Dr. Sarah Smith", p.Notes[0].Author)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882101/reject-photos", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &p)
	assert.Equal(t, types.StageNew, p.Stage)
	assert.False(t, p.Photos.Front)
	assert.False(t, p.Photos.Side)
}

func TestAdminRejectPhotosKeepsDemoThread(t *testing.T) {
	svc, h := setupTestService(t)
	token := adminToken(t, h)
	defaults := svc.catalog.Enrichment.Messages
	require.NotEmpty(t, defaults)

	w := do(t, h, testRequest{method: "POST", path: "/api/v1/admin/patients/882910/reject-photos", token: token})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, testRequest{method: "GET", path: "/api/v1/admin/patients/882910", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var p types.PatientProfile
	decode(t, w, &p)
	require.Len(t, p.Messages, len(defaults)+1)
	for i, m := range defaults {
		assert.Equal(t, m.Content, p.Messages[i].Content)
	}
	last := p.Messages[len(p.Messages)-1]
	assert.Equal(t, types.SenderSystem, last.Sender)
	assert.Equal(t, profile.RejectedPhotosMessage, last.Content)
}

func TestAdminTeam(t *testing.T) {
	_, h := setupTestService(t)
	token := adminToken(t, h)

	w := do(t, h, testRequest{method: "GET", path: "/api/v1/admin/team", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var team []types.Clinician
	decode(t, w, &team)
	require.Len(t, team, 2)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/team", token: token,
		body: inviteRequest{Name: "Dr. Priya Patel", Email: "priya.patel@weighright.co.uk"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var invited types.Clinician
	decode(t, w, &invited)
	assert.Equal(t, types.ClinicianInvited, invited.Status)
	assert.Equal(t, "Prescriber", invited.Role)

	w = do(t, h, testRequest{method: "POST", path: "/api/v1/admin/team", token: token, body: inviteRequest{Name: "No Email"}})
	assertError(t, w, http.StatusBadRequest, types.ErrCodeInvalidInput)

	w = do(t, h, testRequest{method: "DELETE", path: "/api/v1/admin/team/2", token: token})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, testRequest{method: "DELETE", path: "/api/v1/admin/team/2", token: token})
	assertError(t, w, http.StatusNotFound, types.ErrCodeNotFound)
}

func TestAdminExport(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "GET", path: "/api/v1/admin/export.xlsx", token: adminToken(t, h)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Patient ID", book.GetCellValue(DirectorySheet, "A1"))
	assert.Equal(t, "882105", book.GetCellValue(DirectorySheet, "A2"))
	assert.Equal(t, "882109", book.GetCellValue(DirectorySheet, "A3"))
	assert.Equal(t, "", book.GetCellValue(DirectorySheet, "A4"))
}

func TestRateLimit(t *testing.T) {
	_, h := setupTestService(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerMin = 2
	})

	for i := 0; i < 2; i++ {
		w := do(t, h, testRequest{method: "GET", path: "/api/v1/content/plans"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, h, testRequest{method: "GET", path: "/api/v1/content/plans"})
	assertError(t, w, http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)

	w = do(t, h, testRequest{method: "GET", path: "/health"})
	assert.Equal(t, http.StatusOK, w.Code, "health is outside the api budget")
}

func TestHealth(t *testing.T) {
	_, h := setupTestService(t)

	w := do(t, h, testRequest{method: "GET", path: "/health"})
	require.Equal(t, http.StatusOK, w.Code)
	var report map[string]interface{}
	decode(t, w, &report)
	assert.Equal(t, "healthy", report["status"])
	assert.Equal(t, serviceName, report["service"])
	checks := report["checks"].([]interface{})
	require.Len(t, checks, 2)
	assert.Equal(t, "janitor", checks[0].(map[string]interface{})["name"])
}

func TestJanitorHealth(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWithOutput("error", io.Discard)

	disabled := NewJanitor(0, log)
	assert.Equal(t, monitoring.HealthStatusHealthy, disabled.Health(ctx).Status)

	j := NewJanitor(time.Minute, log)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	assert.Equal(t, "janitor not started", j.Health(ctx).Message)

	// run the scheduler without jobs so sweeps happen only when the test calls RunOnce
	j.scheduler.StartAsync()
	j.startedAt = now
	t.Cleanup(j.Stop)
	j.RunOnce()
	assert.Equal(t, monitoring.HealthStatusHealthy, j.Health(ctx).Status)

	now = now.Add(5 * time.Minute)
	check := j.Health(ctx)
	assert.Equal(t, monitoring.HealthStatusDegraded, check.Status)
	assert.Equal(t, "janitor sweeps overdue", check.Message)

	j.Stop()
	assert.Equal(t, "janitor not started", j.Health(ctx).Message)
}

func TestSQLiteBackedService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.db")
	withSQLite := func(cfg *config.Config) {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = path
		cfg.Database.DocumentKey = "portal-test-key"
	}

	svc, h := setupTestService(t, withSQLite)
	w := do(t, h, testRequest{method: "POST", path: "/api/v1/patient/photos/front"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, svc.Stop(context.Background()))

	// A second service over the same file keeps the stored record rather than reseeding it
	_, h = setupTestService(t, withSQLite)
	w = do(t, h, testRequest{method: "GET", path: "/api/v1/patient/profile"})
	require.Equal(t, http.StatusOK, w.Code)
	var p types.PatientProfile
	decode(t, w, &p)
	assert.True(t, p.Photos.Front)
}

func TestJanitorSweeps(t *testing.T) {
	svc, h := setupTestService(t)

	do(t, h, testRequest{method: "POST", path: "/api/v1/eligibility/sessions"})
	require.Equal(t, 1, svc.sessions.Len())

	removed := svc.janitor.RunOnce()
	assert.Equal(t, 0, removed["wizard_sessions"], "fresh sessions survive")
	assert.Contains(t, removed, "promo_marks")
	assert.Contains(t, removed, "login_attempts")
	assert.Contains(t, removed, "request_budget")
}

func TestRecoveryHandler(t *testing.T) {
	svc, _ := setupTestService(t)
	h := svc.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := do(t, h, testRequest{method: "GET", path: "/"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func pinAttempt(t *testing.T, h http.Handler, pin, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	req := testRequest{method: "POST", path: "/api/v1/auth/admin", body: map[string]string{"pin": pin}}
	if forwardedFor != "" {
		req.headers = map[string]string{"X-Forwarded-For": forwardedFor}
	}
	return do(t, h, req)
}

func TestForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	_, h := setupTestService(t)

	for i := 0; i < 3; i++ {
		assertError(t, pinAttempt(t, h, "0000", ""), http.StatusUnauthorized, types.ErrCodeAuthenticationFailed)
	}
	assertError(t, pinAttempt(t, h, "0000", ""), http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)

	// rotating the header does not buy a fresh budget
	for i := 0; i < 20; i++ {
		w := pinAttempt(t, h, "0000", fmt.Sprintf("203.0.113.%d", i))
		assertError(t, w, http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)
	}
	assertError(t, pinAttempt(t, h, "8888", "198.51.100.7"), http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)
}

func TestForwardedForFromTrustedProxy(t *testing.T) {
	_, h := setupTestService(t, func(cfg *config.Config) {
		cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}
	})

	for i := 0; i < 3; i++ {
		pinAttempt(t, h, "0000", "203.0.113.5")
	}
	assertError(t, pinAttempt(t, h, "8888", "203.0.113.5"), http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)

	// a client-supplied prefix left of the real address is ignored
	assertError(t, pinAttempt(t, h, "8888", "198.51.100.99, 203.0.113.5"), http.StatusTooManyRequests, types.ErrCodeRateLimitExceeded)

	// another client behind the same proxy has its own budget
	w := pinAttempt(t, h, "8888", "198.51.100.7")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestForwardedClient(t *testing.T) {
	svc, _ := setupTestService(t, func(cfg *config.Config) {
		cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.10"}
	})

	assert.Equal(t, "203.0.113.5", svc.forwardedClient([]string{"6.6.6.6, 203.0.113.5, 10.1.2.3"}))
	assert.Equal(t, "203.0.113.5", svc.forwardedClient([]string{"6.6.6.6", "203.0.113.5"}))
	assert.Equal(t, "10.0.0.1", svc.forwardedClient([]string{"10.0.0.1, 10.0.0.2"}))
	assert.Equal(t, "", svc.forwardedClient(nil))

	assert.True(t, svc.trustedPeer("192.0.2.10"))
	assert.True(t, svc.trustedPeer("::ffff:10.0.0.1"))
	assert.False(t, svc.trustedPeer("192.0.2.11"))
	assert.False(t, svc.trustedPeer("not-an-ip"))

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.5:5555"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	assert.Equal(t, "203.0.113.5", clientIP(r))
}

func TestWriteDirectory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDirectory(&buf, []dashboard.PatientRow{{
		ID:            "1",
		Name:          "Test Patient",
		Stage:         types.StageActive,
		Plan:          types.TreatmentPlan{Med: types.MedicationWegovy, Dose: "1.7mg"},
		PaymentAction: dashboard.ActionDispatch,
	}}))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Test Patient", book.GetCellValue(DirectorySheet, "B2"))
	assert.Equal(t, "Wegovy", book.GetCellValue(DirectorySheet, "E2"))
	assert.True(t, strings.HasPrefix(book.GetCellValue(DirectorySheet, "I1"), "Next"))
}
