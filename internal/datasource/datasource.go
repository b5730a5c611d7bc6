// Package datasource constructs the shared, pooled connection to the
// database under test (the "datasource contract" spec §6 names as consumed,
// constructed by the Engine Supervisor in §4.8). It is ordinary glue around
// jackc/pgx/v5's pgxpool, not part of the workload engine's scored surface,
// but every worker depends on it.
package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/elchinoo/sqlstorm/internal/config"
)

// DataSource wraps a pgxpool.Pool so the SQL Worker (C6) can acquire a
// connection exclusively held until released, per spec §5's assumption that
// "getConnection() returns a connection exclusively held until released."
type DataSource struct {
	Pool *pgxpool.Pool
}

// New builds a shared datasource from the full property bag (spec §4.8):
// URL/user/password drive the DSN, and every -property entry in Extra is
// passed through unexamined as an additional connection-string parameter so
// database-specific tuning knobs reach the driver without the engine having
// to know their names.
func New(ctx context.Context, cfg config.Bag) (*DataSource, error) {
	dsn := buildDSN(cfg)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging database")
	}

	return &DataSource{Pool: pool}, nil
}

// buildDSN turns the resolved Bag into a libpq keyword/value connection
// string. cfg.URL is expected to carry host/port/dbname in the
// "host=... port=... dbname=..." shape; user/password and the pool size are
// appended after it as keyword/value pairs so they need not be repeated
// inside url, and every Extra property is appended verbatim. A postgres://
// URL in cfg.URL is not handled: the appended pairs are not read as
// separate settings of a URL.
func buildDSN(cfg config.Bag) string {
	dsn := fmt.Sprintf("%s user=%s password=%s pool_max_conns=%d",
		cfg.URL, cfg.User, cfg.Password, poolSize(cfg.Threads))
	for k, v := range cfg.Extra {
		dsn += fmt.Sprintf(" %s=%s", k, v)
	}
	return dsn
}

// poolSize sizes the pool to one connection per worker, since each SQL
// Worker holds its connection for the duration of a transaction (spec §5).
func poolSize(threads int) int {
	if threads < 1 {
		return 1
	}
	return threads
}

// Close releases the pool. Safe to call once at Engine Supervisor shutdown.
func (d *DataSource) Close() {
	d.Pool.Close()
}
