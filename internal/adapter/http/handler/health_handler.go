package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type healthReport struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyHealth `json:"dependencies"`
	CheckedAt    string                      `json:"checked_at"`
}

// HealthCheck handles GET /health. The ledger store and Redis are pinged
// in parallel; any failure turns the report "degraded" with status 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := probe(c.Request.Context(), checkers)
		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}

func probe(ctx context.Context, checkers []ports.HealthChecker) healthReport {
	report := healthReport{
		Status:       "healthy",
		Dependencies: make(map[string]dependencyHealth, len(checkers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, checker := range checkers {
		wg.Add(1)
		go func(hc ports.HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := hc.Ping(ctx)
			dep := dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				dep.Status = "unhealthy"
				dep.Error = err.Error()
			}

			mu.Lock()
			report.Dependencies[hc.Name()] = dep
			if err != nil {
				report.Status = "degraded"
			}
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	report.CheckedAt = time.Now().UTC().Format(time.RFC3339)
	return report
}
