package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

func TestHealthzReportsBuildAndUptime(t *testing.T) {
	launched := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{Version: "2026.03.1", CommitSHA: "f00dcafe", Environment: "staging", StartedAt: launched}),
		WithHealthClock(func() time.Time { return launched.Add(90 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"status":      domain.HealthStatusOK,
		"uptime":      "1m30s",
		"timestamp":   "2026-03-02T09:01:30Z",
		"version":     "2026.03.1",
		"commitSha":   "f00dcafe",
		"environment": "staging",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("healthz payload mismatch (-want +got):\n%s", diff)
	}
}

func TestReadyz(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	tests := []struct {
		name        string
		system      services.SystemService
		wantCode    int
		wantStatus  string
		wantDetails []string
		wantChecks  map[string]string
	}{
		{
			name:       "no system service",
			wantCode:   http.StatusOK,
			wantStatus: domain.HealthStatusOK,
			wantChecks: map[string]string{},
		},
		{
			name: "all dependencies ok",
			system: &stubSystemService{report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
					"builder":   {Status: domain.HealthStatusOK, Detail: "2 open sessions across 1 sellers", CheckedAt: now},
				},
			}},
			wantCode:   http.StatusOK,
			wantStatus: domain.HealthStatusOK,
			wantChecks: map[string]string{"firestore": domain.HealthStatusOK, "builder": domain.HealthStatusOK},
		},
		{
			name: "degraded events and closed builder",
			system: &stubSystemService{report: services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"pubsub":  {Status: domain.HealthStatusDegraded, Detail: "topic missing"},
					"builder": {Status: domain.HealthStatusError, Error: "builder registry closed"},
				},
			}},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  domain.HealthStatusError,
			wantDetails: []string{"builder: builder registry closed", "pubsub: topic missing"},
			wantChecks:  map[string]string{"pubsub": domain.HealthStatusDegraded, "builder": domain.HealthStatusError},
		},
		{
			name:        "report failure",
			system:      &stubSystemService{err: errors.New("firestore unreachable")},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  domain.HealthStatusError,
			wantDetails: []string{"report: firestore unreachable"},
			wantChecks:  map[string]string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := []HealthOption{WithHealthClock(func() time.Time { return now })}
			if tc.system != nil {
				opts = append(opts, WithHealthSystemService(tc.system))
			}
			rr := httptest.NewRecorder()
			NewHealthHandlers(opts...).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			var body readinessPayload
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.wantStatus {
				t.Fatalf("status field = %q, want %q", body.Status, tc.wantStatus)
			}
			if body.GeneratedAt != "2026-03-02T09:05:00Z" {
				t.Fatalf("generatedAt = %q", body.GeneratedAt)
			}
			if diff := cmp.Diff(tc.wantDetails, body.Details, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("details mismatch (-want +got):\n%s", diff)
			}
			gotChecks := make(map[string]string, len(body.Checks))
			for name, check := range body.Checks {
				gotChecks[name] = check.Status
			}
			if diff := cmp.Diff(tc.wantChecks, gotChecks); diff != "" {
				t.Fatalf("checks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadyzReportsLatencyInMilliseconds(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK, Latency: 1500 * time.Microsecond},
		},
	}}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body readinessPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := body.Checks["firestore"].LatencyMS; got != 1.5 {
		t.Fatalf("latencyMs = %v, want 1.5", got)
	}
}
