package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

type mockAccessChecker struct {
	err error
}

func (m *mockAccessChecker) CheckAccess(context.Context) error {
	return m.err
}

func readiness(t *testing.T, srv *Server) (int, readinessResponse) {
	t.Helper()
	r := gin.New()
	r.GET("/health/readiness", srv.HandleReadiness)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	var out readinessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, out
}

func TestReadiness_NoCheckers(t *testing.T) {
	code, out := readiness(t, NewServer(nil, nil, nil))
	if code != http.StatusOK || out.Status != "up" {
		t.Errorf("code = %d, status = %q; want 200 up", code, out.Status)
	}
	if len(out.Checks) != 0 {
		t.Errorf("checks = %v, want none", out.Checks)
	}
}

func TestReadiness_AllHealthy(t *testing.T) {
	code, out := readiness(t, NewServer(&mockPinger{}, &mockPolicyChecker{}, &mockAccessChecker{}))
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	for _, name := range []string{"database", "policy", "identity"} {
		if out.Checks[name] != "ok" {
			t.Errorf("check %s = %q, want ok", name, out.Checks[name])
		}
	}
}

func TestReadiness_PingerFailure(t *testing.T) {
	code, out := readiness(t, NewServer(&mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, nil))
	if code != http.StatusServiceUnavailable || out.Status != "down" {
		t.Errorf("code = %d, status = %q; want 503 down", code, out.Status)
	}
	if out.Checks["database"] != "connection refused" || out.Checks["policy"] != "ok" {
		t.Errorf("checks = %v", out.Checks)
	}
}

func TestReadiness_PolicyCheckerFailure(t *testing.T) {
	code, _ := readiness(t, NewServer(nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, nil))
	if code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", code)
	}
}

func TestReadiness_IdentityAccessFailure(t *testing.T) {
	code, out := readiness(t, NewServer(&mockPinger{}, nil, &mockAccessChecker{err: errors.New("invalid JWT")}))
	if code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", code)
	}
	if out.Checks["identity"] != "invalid JWT" {
		t.Errorf("identity check = %q", out.Checks["identity"])
	}
}

func TestLiveness(t *testing.T) {
	r := gin.New()
	r.GET("/health/liveness", NewServer(nil, nil, nil).HandleLiveness)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	var out livenessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "up" || out.GOMAXPROCS < 1 {
		t.Errorf("body = %+v", out)
	}
}
