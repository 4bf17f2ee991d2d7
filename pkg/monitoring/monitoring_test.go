package monitoring

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weighright/portal/pkg/logger"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthManager_AggregatesChecks(t *testing.T) {
	hm := NewHealthManager("portal", "test", time.Second)
	hm.RegisterChecker("profiles", NewPingHealthChecker("profiles", fakePinger{}))

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, report.Status)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, "profiles", report.Checks[0].Name)

	hm.RegisterChecker("sessions", HealthCheckFunc(func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusDegraded}
	}))
	report = hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusDegraded, report.Status)
	assert.Equal(t, "profiles", report.Checks[0].Name)
	assert.Equal(t, "sessions", report.Checks[1].Name)
}

type fakeDB struct {
	err   error
	stats sql.DBStats
}

func (f fakeDB) PingContext(ctx context.Context) error { return f.err }
func (f fakeDB) Stats() sql.DBStats                    { return f.stats }

func TestDatabaseHealthChecker(t *testing.T) {
	ctx := context.Background()

	check := NewDatabaseHealthChecker(fakeDB{stats: sql.DBStats{MaxOpenConnections: 10, InUse: 2}}).Check(ctx)
	assert.Equal(t, HealthStatusHealthy, check.Status)
	assert.Equal(t, 2, check.Details["in_use"])

	check = NewDatabaseHealthChecker(fakeDB{stats: sql.DBStats{MaxOpenConnections: 10, InUse: 9}}).Check(ctx)
	assert.Equal(t, HealthStatusDegraded, check.Status)

	check = NewDatabaseHealthChecker(fakeDB{err: errors.New("refused")}).Check(ctx)
	assert.Equal(t, HealthStatusUnhealthy, check.Status)
	assert.Contains(t, check.Message, "refused")
}

func TestHealthManager_Timeout(t *testing.T) {
	hm := NewHealthManager("portal", "test", 20*time.Millisecond)
	hm.RegisterChecker("slow", HealthCheckFunc(func(ctx context.Context) HealthCheck {
		<-ctx.Done()
		return HealthCheck{Status: HealthStatusUnhealthy, Message: ctx.Err().Error()}
	}))
	hm.RegisterChecker("silent", HealthCheckFunc(func(ctx context.Context) HealthCheck {
		return HealthCheck{}
	}))

	start := time.Now()
	report := hm.CheckHealth(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Equal(t, 2, report.Summary[string(HealthStatusUnhealthy)], "a check without a status counts as unhealthy")
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks[1].Message)
}

func TestHealthManager_HTTPHandlerUnhealthy(t *testing.T) {
	hm := NewHealthManager("portal", "test", time.Second)
	hm.RegisterChecker("profiles", NewPingHealthChecker("profiles", fakePinger{err: errors.New("closed")}))

	rec := httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks[0].Message, "closed")
}

func TestMetricsCollector_IndependentRegistries(t *testing.T) {
	a := NewMetricsCollector("a")
	b := NewMetricsCollector("b")

	a.RecordEligibilityVerdict(true)
	a.RecordEligibilityVerdict(false)
	a.RecordEligibilityVerdict(false)
	b.RecordStageTransition("new", "review")

	assert.Equal(t, float64(2), testutil.ToFloat64(a.eligibilityVerdicts.WithLabelValues("not_eligible", "a")))
	assert.Equal(t, float64(1), testutil.ToFloat64(b.stageTransitions.WithLabelValues("new", "review", "b")))
}

func TestMonitoringMiddleware_RequestIDAndRouteLabel(t *testing.T) {
	metrics := NewMetricsCollector("portal")
	tracing, err := NewTracingManager(context.Background(), &TracingConfig{ServiceName: "portal"})
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logger.NewWithOutput("info", &buf)
	mm := NewMonitoringMiddleware(metrics, tracing, log)

	router := mux.NewRouter()
	router.Use(mm.HTTPMiddleware)
	var seenID interface{}
	router.HandleFunc("/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = r.Context().Value(logger.RequestIDKey)
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/patients/882910", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-1", seenID)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, "/patients/{id}", "418", "portal")))
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), "HTTP request completed with error")
}
