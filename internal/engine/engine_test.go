package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/elchinoo/sqlstorm/internal/config"
	"github.com/elchinoo/sqlstorm/internal/stats"
)

func TestRingCapacity(t *testing.T) {
	cases := []struct {
		rate, threads, duration, want int
	}{
		{0, 10, 1, ringMinCapacity},
		{1, 1, 1, ringMinCapacity}, // 1*1*1=1, floored to the minimum
		{100, 10, 20, 20000},       // 100*10*20=20000 > minimum
	}
	for _, c := range cases {
		if got := ringCapacity(c.rate, c.threads, c.duration); got != c.want {
			t.Errorf("ringCapacity(%d,%d,%d) = %d, want %d", c.rate, c.threads, c.duration, got, c.want)
		}
	}
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	if err := Validate(config.Defaults()); err == nil {
		t.Fatal("expected error: url/user/password unset")
	}
}

// TestRunMeetsDeadlineS7 is spec's S7 scenario: time=1, threads=4, trivial
// SELECT; total wall clock of the engine <= 1.5s and final OPS_COUNT > 0.
// It needs a reachable PostgreSQL instance, so it is gated like the
// teacher's own test/integration suite (skipped in -short mode, skipped if
// the database is unreachable) rather than run unconditionally.
func TestRunMeetsDeadlineS7(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := config.Defaults()
	cfg.URL = getEnvOrDefault("SQLSTORM_TEST_URL", "host=localhost port=5432 dbname=postgres sslmode=disable")
	cfg.User = getEnvOrDefault("SQLSTORM_TEST_USER", "postgres")
	cfg.Password = getEnvOrDefault("SQLSTORM_TEST_PASSWORD", "")
	cfg.Threads = 4
	cfg.Time = 1
	cfg.SQL = "SELECT 1"

	sup := &Supervisor{Config: cfg}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		t.Skipf("could not run against test database: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("Run took %v, want <= 1.5s", elapsed)
	}
	if got := sup.Stats.Get(stats.OpsCount); got <= 0 {
		t.Errorf("final OPS_COUNT = %d, want > 0", got)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
