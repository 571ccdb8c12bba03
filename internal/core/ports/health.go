package ports

//go:generate mockgen -source=health.go -destination=mocks/mock_health.go -package=mocks

import "context"

// HealthChecker is implemented by every backing dependency reported on /health.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name is the key used in the health report ("postgresql", "redis", "memory").
	Name() string
}
