// api/config/config_test.go
package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("CLICKHOUSE_DB_NAME", "analytics")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" {
		t.Errorf("Port = %q, want 8080", c.Port)
	}
	if c.MaxBatchSize != 1000 {
		t.Errorf("MaxBatchSize = %d, want 1000", c.MaxBatchSize)
	}
	if c.RateLimitRequests != 100 || c.RateLimitPeriod != time.Minute {
		t.Errorf("rate limit = %d/%v, want 100/1m", c.RateLimitRequests, c.RateLimitPeriod)
	}
	if c.MaxAttempts != 3 || c.VisibilityTimeout != 30*time.Second {
		t.Errorf("queue = %d attempts / %v visibility, want 3 / 30s", c.MaxAttempts, c.VisibilityTimeout)
	}
	if c.ClickHouse.Port != 9000 {
		t.Errorf("ClickHouse.Port = %d, want 9000", c.ClickHouse.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_BATCH_SIZE", "50")
	t.Setenv("RATE_LIMIT_PERIOD", "30s")
	t.Setenv("WORKER_COUNT", "8")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MaxBatchSize != 50 || c.RateLimitPeriod != 30*time.Second || c.WorkerCount != 8 {
		t.Errorf("overrides not applied: %+v", c)
	}
}

func TestLoadRequiresClickHouse(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "")
	t.Setenv("CLICKHOUSE_DB_NAME", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without ClickHouse settings")
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_BATCH_SIZE", "many")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded with a non-numeric MAX_BATCH_SIZE")
	}
}
