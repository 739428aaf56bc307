package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/finsight/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported by Check.
const (
	ComponentVectorStore = "vector_store"
	ComponentEmbedding   = "embedding"
	ComponentCompletion  = "completion"
	ComponentCache       = "cache"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Components lists the dependencies to check. Nil entries are skipped.
type Components struct {
	VectorStore Checker
	Embedding   Checker
	Completion  Checker
	Cache       Checker
}

// Service coordinates health checks.
type Service struct {
	checks map[string]Checker
}

// New creates a Service.
func New(c Components) *Service {
	checks := make(map[string]Checker, 4)
	for name, ch := range map[string]Checker{
		ComponentVectorStore: c.VectorStore,
		ComponentEmbedding:   c.Embedding,
		ComponentCompletion:  c.Completion,
		ComponentCache:       c.Cache,
	} {
		if ch != nil {
			checks[name] = ch
		}
	}
	return &Service{checks: checks}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy

	for name, ch := range s.checks {
		if err := ch.HealthCheck(ctx); err != nil {
			logger.FromContext(ctx).Warn("Health check failed", zap.String("component", name), zap.Error(err))
			checks[name] = CheckError
			status = Degraded
			continue
		}
		checks[name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
