package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/voicedeck/voicedeck/internal/config"
	"github.com/voicedeck/voicedeck/internal/quota"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:      "0",
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "text",
	}
}

// newTestServer creates an in-memory server
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(testConfig(), opts...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// createTenant provisions a tenant through the admin API and returns its ID.
func createTenant(t *testing.T, s *Server, slug, tierName string) string {
	t.Helper()

	body := fmt.Sprintf(`{"name":"Test Tenant","slug":%q,"tier":%q}`, slug, tierName)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/admin/tenants", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating tenant, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Tenant struct {
			ID string `json:"id"`
		} `json:"tenant"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Tenant.ID == "" {
		t.Fatal("Expected tenant id in response")
	}
	return resp.Tenant.ID
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/healthz",
		"GET:/metrics",
		"GET:/v1/tenants/:id/entitlements",
		"GET:/v1/tenants/:id/features/:feature",
		"GET:/v1/tenants/:id/quota/agents",
		"GET:/v1/tenants/:id/quota/campaigns",
		"GET:/v1/tenants/:id/quota/calls",
		"GET:/v1/tenants/:id/quota/minutes",
		"POST:/v1/tenants/:id/usage",
		"GET:/v1/tenants/:id/usage",
		"POST:/v1/admin/tenants",
		"GET:/v1/admin/tenants/:id",
		"PATCH:/v1/admin/tenants/:id/limits",
		"PATCH:/v1/admin/tenants/:id/features",
		"PUT:/v1/admin/tenants/:id/active",
		"PUT:/v1/admin/tenants/:id/tier",
		"POST:/v1/admin/reconcile",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Admin authentication
// ---------------------------------------------------------------------------

func TestAdminRoutes_RequireSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = "supersecret123"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	body := `{"name":"Acme","slug":"acme"}`

	// Missing header
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/admin/tenants", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without secret, got %d", w.Code)
	}

	// Wrong secret
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/admin/tenants", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", "wrong")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 with wrong secret, got %d", w.Code)
	}

	// Correct secret
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/admin/tenants", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", "supersecret123")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201 with correct secret, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// End-to-end governance flow
// ---------------------------------------------------------------------------

func TestGovernanceFlow(t *testing.T) {
	census := quota.NewMemoryCensus()
	s := newTestServer(t, WithCensus(census))

	id := createTenant(t, s, "acme-dialer", "basic")

	// Entitlements reflect the basic tier
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tenants/"+id+"/entitlements", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ent struct {
		Limits struct {
			MaxAgents  int   `json:"maxAgents"`
			MaxMinutes int64 `json:"maxMinutes"`
		} `json:"limits"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ent); err != nil {
		t.Fatalf("Failed to parse entitlements: %v", err)
	}
	if ent.Limits.MaxAgents != 1 || ent.Limits.MaxMinutes != 100 {
		t.Errorf("Expected basic limits (1 agent, 100 min), got %+v", ent.Limits)
	}
	if ent.Status != "active" {
		t.Errorf("Expected active status, got %q", ent.Status)
	}

	// Quota gate: no agents yet, creation allowed
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/tenants/"+id+"/quota/agents", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var dec struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &dec); err != nil {
		t.Fatalf("Failed to parse decision: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("Expected agent creation allowed, got reason %q", dec.Reason)
	}

	// At the limit the gate closes
	census.SetCounts(id, 1, 0, 0)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/tenants/"+id+"/quota/agents", nil)
	s.router.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &dec); err != nil {
		t.Fatalf("Failed to parse decision: %v", err)
	}
	if dec.Allowed {
		t.Error("Expected agent creation denied at limit")
	}
	if dec.Reason != "limit_exceeded" {
		t.Errorf("Expected limit_exceeded, got %q", dec.Reason)
	}

	// Record usage, then replay the same key
	body := `{"minutesDelta":40,"idempotencyKey":"call-1"}`
	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		req = httptest.NewRequest("POST", "/v1/tenants/"+id+"/usage", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		s.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 recording usage, got %d: %s", w.Code, w.Body.String())
		}
		var usageResp struct {
			MinutesUsed int64 `json:"minutesUsed"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &usageResp); err != nil {
			t.Fatalf("Failed to parse usage response: %v", err)
		}
		if usageResp.MinutesUsed != 40 {
			t.Errorf("Attempt %d: expected 40 minutes used, got %d", i+1, usageResp.MinutesUsed)
		}
	}

	// History shows the single record
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/tenants/"+id+"/usage", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var hist struct {
		Records []json.RawMessage `json:"records"`
		HasMore bool              `json:"hasMore"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("Failed to parse history: %v", err)
	}
	if len(hist.Records) != 1 {
		t.Errorf("Expected 1 usage record, got %d", len(hist.Records))
	}

	// Minutes gate still open at 40/100
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/tenants/"+id+"/quota/minutes", nil)
	s.router.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &dec); err != nil {
		t.Fatalf("Failed to parse decision: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("Expected minutes remaining at 40/100, got reason %q", dec.Reason)
	}
}

func TestTenantIDValidation(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/tenants/not-a-tenant/entitlements", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed tenant id, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}

	// Upstream-provided IDs are echoed back
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-upstream-1")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-upstream-1" {
		t.Errorf("Expected echoed request id, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
