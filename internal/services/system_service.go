package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/repositories"
)

const builderCheckName = "builder"

type builderStatsSource interface {
	Stats() BuilderStats
}

// SystemServiceDeps wires the readiness report. Builder is optional; when set the report carries an
// in-process check for the session registry next to the external dependencies.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Builder          builderStatsSource
	Clock            func() time.Time
}

type systemService struct {
	dependencies repositories.HealthRepository
	builder      builderStatsSource
	clock        func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService constructs the readiness reporter.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &systemService{
		dependencies: deps.HealthRepository,
		builder:      deps.Builder,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// HealthReport probes external dependencies and folds in the builder registry. The overall status
// is the worst individual status.
func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.dependencies.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	checks := make(map[string]domain.SystemHealthCheck, len(report.Checks)+1)
	for name, check := range report.Checks {
		checks[name] = check
	}
	if s.builder != nil {
		checks[builderCheckName] = builderCheck(s.builder.Stats(), now)
	}
	report.Checks = checks
	report.Status = worstStatus(checks)
	return report, nil
}

func builderCheck(stats BuilderStats, now time.Time) domain.SystemHealthCheck {
	if stats.Closed {
		return domain.SystemHealthCheck{
			Status:    domain.HealthStatusError,
			Error:     "builder registry closed",
			CheckedAt: now,
		}
	}
	return domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    fmt.Sprintf("%d open sessions across %d sellers", stats.OpenSessions, stats.Owners),
		CheckedAt: now,
	}
}

func worstStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
