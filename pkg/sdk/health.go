package finsight

import (
	"context"
	"slices"

	healthuc "github.com/kailas-cloud/finsight/internal/usecase/health"
)

// HealthStatus is the outcome of Client.Health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // vector_store, embedding, completion, cache: "ok" or "error"
}

// Healthy reports whether every configured dependency answered.
func (h HealthStatus) Healthy() bool { return h.Status == string(healthuc.Healthy) }

// Failing lists the components that did not answer, sorted.
func (h HealthStatus) Failing() []string {
	var out []string
	for name, v := range h.Checks {
		if v != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Health probes the vector store, embedding sidecar, completion provider
// and, when enabled, the embedding cache.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	h := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, r := range report.Checks {
		h.Checks[name] = string(r)
	}
	return h
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
