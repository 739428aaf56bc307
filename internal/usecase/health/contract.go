package health

import "context"

// Checker checks a single dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
