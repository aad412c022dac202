package postgres

import (
	"context"
	"fmt"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether the ledger schema is reachable. A plain
// connection check would pass against an unmigrated database.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping queries the wallets table with a short timeout.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM wallets LIMIT 1"); err != nil {
		return fmt.Errorf("postgres ledger schema: %w", err)
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
