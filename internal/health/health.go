// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Checker is a dependency the readiness probe verifies.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// Report is the outcome of running every checker once.
type Report struct {
	Healthy bool
	Checks  map[string]string
}

// Run executes the checkers concurrently, each bounded by timeout, and
// reports "ok" or "error" per checker name. Failures are logged at warn.
func Run(ctx context.Context, timeout time.Duration, logger *slog.Logger, checkers ...Checker) Report {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := Report{Healthy: true, Checks: make(map[string]string, len(checkers))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			err := c.HealthCheck(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Healthy = false
				report.Checks[c.Name()] = "error"
				logger.WarnContext(ctx, "health check failed",
					slog.String("check", c.Name()),
					slog.String("error", err.Error()))
				return
			}
			report.Checks[c.Name()] = "ok"
		}(c)
	}
	wg.Wait()
	return report
}
