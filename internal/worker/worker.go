// Package worker implements the SQL Worker (spec component C6): the run
// loop that repeatedly opens a transaction, binds generated parameters into
// the statement template, executes queryPerTx statements, commits, updates
// the Stats Array, paces itself, and classifies failures — until the
// wall-clock deadline.
package worker

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/elchinoo/sqlstorm/internal/datasource"
	"github.com/elchinoo/sqlstorm/internal/generator"
	"github.com/elchinoo/sqlstorm/internal/logging"
	"github.com/elchinoo/sqlstorm/internal/retry"
	"github.com/elchinoo/sqlstorm/internal/ring"
	"github.com/elchinoo/sqlstorm/internal/statement"
	"github.com/elchinoo/sqlstorm/internal/stats"
)

// Barrier is the start-rendezvous contract every worker and the monitor
// await before running (spec §4.8/§9: "a start barrier with one extra slot
// for the monitor"). Any equivalent primitive is fine; Engine Supervisor
// supplies the concrete implementation.
type Barrier interface {
	Await()
}

// Worker holds the immutable per-instance state spec §4.6 names, set once
// at construction. A Worker is never shared across goroutines; it owns its
// own Template (and therefore its own *rand.Rand-backed generators, per
// spec §9) and Ring History.
type Worker struct {
	ID       int
	DS       *datasource.DataSource
	Barrier  Barrier
	Stats    *stats.Array
	Template *statement.Template

	Deadline     time.Time
	QueryPerTx   int
	Iterate      bool
	TargetTxTime int64 // nanoseconds; 0 means rate pacing is disabled
	Desaturation float64
	Ring         *ring.History

	Logger logging.EngineLogger
}

// TargetTxTimeNs derives the per-worker target inter-transaction time from a
// configured rate (spec §4.6): (rate > 0) ? (1e9 * threads / rate) : 0.
func TargetTxTimeNs(rate, threads int) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(1e9) * int64(threads) / int64(rate)
}

// DesaturationFactor derives the proportional desaturation sleep factor (spec
// §4.6, §9 Open Question (a)): load=100 is legal and yields exactly 0 sleep.
func DesaturationFactor(load int) float64 {
	if load <= 0 || load >= 100 {
		return 0
	}
	return float64(100-load) / float64(load)
}

// Run executes the worker's run loop until ctx is cancelled or the
// wall-clock deadline passes. It never returns an error for a classified
// in-transaction failure (those are counted in the Stats Array and logged);
// it returns only for an unrecoverable condition that ends the worker early
// (spec §7: "exit worker").
func (w *Worker) Run(ctx context.Context) error {
	w.Barrier.Await()

	w.Stats.CompareAndSwap(stats.StartTime, 0, time.Now().UnixNano())

	for time.Now().Before(w.Deadline) {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := w.runTransaction(ctx); err != nil {
			if err == errRollbackContinue {
				continue
			}
			w.Logger.Error("worker exiting after unrecoverable failure", err, logging.Fields.Worker(w.ID)...)
			return err
		}
	}
	return nil
}

// errRollbackContinue is a sentinel signalling runTransaction already
// classified and counted a rollback, and the outer loop should simply
// attempt the next transaction.
var errRollbackContinue = &rollbackContinueError{}

type rollbackContinueError struct{}

func (*rollbackContinueError) Error() string { return "transaction rolled back, continuing" }

func (w *Worker) runTransaction(ctx context.Context) error {
	begin := time.Now().UnixNano()

	tx, err := w.acquireTx(ctx)
	if err != nil {
		return err
	}

	var response, elapsed int64
	var rowCount int64

	for i := 0; i < w.QueryPerTx; i++ {
		args := make([]any, len(w.Template.Generators))
		for gi, gen := range w.Template.Generators {
			v, gerr := gen.NextValue()
			if gerr != nil {
				_ = tx.Rollback(ctx)
				w.Logger.Error("generator failure", gerr, logging.Fields.Worker(w.ID)...)
				return gerr
			}
			args[gi] = bindArg(v)
		}

		start := time.Now().UnixNano()
		rows, execErr := w.dispatch(ctx, tx, args)
		opNs := time.Now().UnixNano() - start

		if execErr != nil {
			return w.classifyAndHandle(ctx, tx, execErr)
		}

		response += opNs
		elapsed += opNs
		rowCount += rows
	}

	w.Stats.Add(stats.LatencyTime, response)
	w.Stats.Add(stats.OpsTime, elapsed)
	w.Stats.Increment(stats.TxCount)
	w.Stats.Add(stats.OpsCount, int64(w.QueryPerTx))
	w.Stats.Add(stats.RowCount, rowCount)

	if err := tx.Commit(ctx); err != nil {
		return w.classifyAndHandle(ctx, tx, err)
	}

	end := time.Now().UnixNano()
	w.Stats.Add(stats.TxTime, end-begin)
	w.Ring.Add(begin, end)
	w.Stats.Set(stats.EndTime, end)

	w.pace(response)
	return nil
}

// acquireTx implements the "Non-transient connection" policy of spec §7:
// up to 3 attempts in total (2 retries) with linear backoff, then exit the
// worker.
func (w *Worker) acquireTx(ctx context.Context) (pgx.Tx, error) {
	var tx pgx.Tx
	err := retry.NonTransientConnection(ctx, func() error {
		t, e := w.DS.Pool.Begin(ctx)
		if e != nil {
			return e
		}
		tx = t
		return nil
	})
	return tx, err
}

func (w *Worker) dispatch(ctx context.Context, tx pgx.Tx, args []any) (rowCount int64, err error) {
	sql := toPositionalSQL(w.Template.RewrittenSQL)
	switch w.Template.Verb {
	case statement.VerbSelect:
		rows, qerr := tx.Query(ctx, sql, args...)
		if qerr != nil {
			return 0, qerr
		}
		defer rows.Close()
		var n int64
		if w.Iterate {
			for rows.Next() {
				n++
			}
			if rerr := rows.Err(); rerr != nil {
				return n, rerr
			}
		}
		return n, nil
	default: // INSERT, UPDATE, DELETE, EXECUTE
		_, eerr := tx.Exec(ctx, sql, args...)
		if eerr != nil {
			return 0, eerr
		}
		return 0, nil
	}
}

// toPositionalSQL rewrites the bare `?` placeholders statement.Parse always
// emits (spec §4.3) into PostgreSQL's native `$1, $2, ...` positional syntax,
// which is what pgx requires for parameter binding. Template.RewrittenSQL
// itself stays in the bare-`?` shape spec's testable properties check
// against; this conversion happens only at the pgx call site.
func toPositionalSQL(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

// classifyAndHandle implements the failure-classification table of spec
// §4.6/§7. It always rolls back before returning.
func (w *Worker) classifyAndHandle(ctx context.Context, tx pgx.Tx, cause error) error {
	_ = tx.Rollback(ctx)

	var pgErr *pgconn.PgError
	if errors.As(cause, &pgErr) {
		switch {
		case isTransactionRollbackClass(pgErr.Code):
			if strings.Contains(strings.ToLower(pgErr.Message), "deadlock") {
				w.Stats.Increment(stats.AbortDeadlock)
				w.Logger.Warn("transaction rolled back: deadlock", logging.Fields.Abort(w.ID, "deadlock")...)
			} else {
				w.Stats.Increment(stats.AbortConflict)
				w.Logger.Warn("transaction rolled back: conflict", logging.Fields.Abort(w.ID, "conflict")...)
			}
			return errRollbackContinue

		case isConnectionExceptionClass(pgErr.Code):
			w.Logger.Info("transient connection loss, continuing", logging.Fields.Worker(w.ID)...)
			return errRollbackContinue

		default:
			w.Logger.Error("unrecoverable SQL failure", cause, logging.Fields.Worker(w.ID)...)
			return cause
		}
	}

	w.Logger.Error("unrecoverable failure", cause, logging.Fields.Worker(w.ID)...)
	return cause
}

// isTransactionRollbackClass reports whether code is in PostgreSQL's class
// 40 (transaction_rollback): serialization_failure (40001),
// deadlock_detected (40P01), and related codes.
func isTransactionRollbackClass(code string) bool {
	return strings.HasPrefix(code, "40")
}

// isConnectionExceptionClass reports whether code is in PostgreSQL's class
// 08 (connection_exception) — a transient connection loss the pool is
// expected to recover from on the next transaction's connection acquire.
func isConnectionExceptionClass(code string) bool {
	return strings.HasPrefix(code, "08")
}

// pace implements spec §4.6 step 6: rate pacing via the Ring History takes
// priority; otherwise proportional desaturation sleeps based on the last
// transaction's measured response time.
func (w *Worker) pace(response int64) {
	if w.TargetTxTime > 0 {
		if s := w.Ring.GetSleepTime(w.TargetTxTime); s > 0 {
			time.Sleep(time.Duration(s))
			w.Stats.Add(stats.InactiveTime, s)
		}
		return
	}
	if w.Desaturation > 0 && w.Ring.Size() > 1 {
		sleepNs := int64(float64(response) * w.Desaturation)
		if sleepNs > 0 {
			time.Sleep(time.Duration(sleepNs))
			w.Stats.Add(stats.InactiveTime, sleepNs)
		}
	}
}

// bindArg converts a generator.Value into the argument pgx binds
// positionally. Formatted values are always strings (sprintf already
// applied); unformatted values keep their native Go type so pgx binds by
// runtime type, matching spec §4.6 step 3.
func bindArg(v generator.Value) any {
	if v.IsFmted {
		return v.Str
	}
	switch v.Kind {
	case generator.KindInt, generator.KindLong:
		return v.Int
	case generator.KindString, generator.KindValue:
		return v.Str
	case generator.KindBoolean:
		return v.Bool
	case generator.KindDate:
		return v.Time
	default:
		return nil
	}
}
