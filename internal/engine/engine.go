// Package engine implements the Engine Supervisor (spec component C8):
// validates options, constructs the shared datasource, spawns the worker
// pool and monitor behind a start barrier, and waits for completion.
package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/elchinoo/sqlstorm/internal/config"
	"github.com/elchinoo/sqlstorm/internal/datasource"
	"github.com/elchinoo/sqlstorm/internal/generator"
	"github.com/elchinoo/sqlstorm/internal/logging"
	"github.com/elchinoo/sqlstorm/internal/monitor"
	"github.com/elchinoo/sqlstorm/internal/ring"
	"github.com/elchinoo/sqlstorm/internal/statement"
	"github.com/elchinoo/sqlstorm/internal/stats"
	"github.com/elchinoo/sqlstorm/internal/worker"
)

const ringMinCapacity = 10000

// Supervisor owns one run of the engine: one shared datasource, `threads`
// workers, and one monitor, all released together by a start barrier.
type Supervisor struct {
	Config config.Bag
	Logger logging.EngineLogger
	Table  *generator.DataTable // nil unless Config.Data is set

	// RunID identifies this invocation across every log line and the
	// terminal report (supplemented feature, §SPEC_FULL.md 4).
	RunID string

	// Stats is populated at the start of Run and remains readable afterward,
	// so a caller (or a test asserting spec §8's S7 "final OPS_COUNT > 0")
	// can inspect the finished run's counters without Run itself returning
	// them.
	Stats *stats.Array
}

// Validate applies the Engine Supervisor's validation rules (spec §4.8):
// required fields, rate/time/threads relationship, and load range. The
// both-set warning is not emitted here; Run logs it after validation.
func Validate(cfg config.Bag) error {
	if err := config.Validate(&cfg); err != nil {
		return err
	}
	return nil
}

// Run constructs the datasource, spawns the worker pool + monitor behind a
// start barrier sized threads+1, and blocks until every task completes
// (spec §4.8, §5). Its error return covers only fatal startup failures
// (validation, datasource construction, template parsing) — per spec §6,
// exit code is non-zero for those and zero otherwise, even when one or more
// workers exited early on an unrecoverable in-transaction failure. Those
// per-worker causes are logged as they happen (worker.Run) and, combined via
// multierr, once more as a single warning after every worker has returned,
// so a reader of the log sees every exited worker's cause in one place
// without changing the run's exit code.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.RunID == "" {
		s.RunID = uuid.New().String()
	}
	if s.Logger == nil {
		s.Logger = logging.NewDefaultLogger()
	}
	s.Logger = s.Logger.With(zap.String("run_id", s.RunID))

	if err := Validate(s.Config); err != nil {
		return err
	}
	if s.Config.RateAndLoadBothSet() {
		s.Logger.Warn("both rate and load configured; load is ignored", zap.Int("rate", s.Config.Rate), zap.Int("load", s.Config.Load))
	}

	ds, err := datasource.New(ctx, s.Config)
	if err != nil {
		return err
	}
	defer ds.Close()

	statsArray := stats.New()
	s.Stats = statsArray
	deadline := time.Now().Add(time.Duration(s.Config.Time) * time.Second)
	barrier := NewBarrier(s.Config.Threads + 1)

	workers := make([]*worker.Worker, 0, s.Config.Threads)
	for i := 0; i < s.Config.Threads; i++ {
		w, werr := s.buildWorker(i, ds, statsArray, barrier, deadline)
		if werr != nil {
			return werr
		}
		workers = append(workers, w)
	}

	mon := &monitor.Monitor{
		Stats:        statsArray,
		Barrier:      barrier,
		Logger:       s.Logger.With(zap.String("component", "monitor")),
		ReportPeriod: time.Duration(s.Config.Report) * time.Second,
		Deadline:     deadline.Add(100 * time.Millisecond),
		Threads:      s.Config.Threads,
	}

	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// Workers and the monitor run under a panic-safe pool (sourcegraph/conc):
	// a worker panic is recovered at WaitAndRecover() and logged rather than
	// taking down the whole process, distinct from the classified SQL failures
	// worker.Run already handles internally. Each worker writes its own exit
	// cause to its own slot so none can observe or affect another, per §5's
	// "no inter-task cancellation".
	workerErrs := make([]error, len(workers))
	var wg conc.WaitGroup

	for idx, w := range workers {
		idx, w := idx, w
		wg.Go(func() {
			workerErrs[idx] = w.Run(runCtx)
		})
	}
	wg.Go(func() {
		monCtx, monCancel := context.WithDeadline(ctx, mon.Deadline)
		defer monCancel()
		mon.Run(monCtx)
	})

	if recovered := wg.WaitAndRecover(); recovered != nil {
		s.Logger.Error("worker or monitor panicked", nil, zap.Any("panic", recovered.Value))
	}

	if combined := multierr.Combine(workerErrs...); combined != nil {
		s.Logger.Warn("one or more workers exited early", zap.Error(combined))
	}
	return nil
}

func (s *Supervisor) buildWorker(id int, ds *datasource.DataSource, statsArray *stats.Array, barrier *Barrier, deadline time.Time) (*worker.Worker, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	tmpl, err := statement.Parse(s.Config.SQL, s.Config.Params, s.Table, rng)
	if err != nil {
		return nil, err
	}

	capacity := ringCapacity(s.Config.Rate, s.Config.Threads, s.Config.Time)

	return &worker.Worker{
		ID:           id,
		DS:           ds,
		Barrier:      barrier,
		Stats:        statsArray,
		Template:     tmpl,
		Deadline:     deadline,
		QueryPerTx:   s.Config.Batch,
		Iterate:      s.Config.Iterate,
		TargetTxTime: worker.TargetTxTimeNs(s.Config.Rate, s.Config.Threads),
		Desaturation: worker.DesaturationFactor(s.Config.Load),
		Ring:         ring.New(capacity),
		Logger:       s.Logger.With(zap.Int("worker_id", id)),
	}, nil
}

// ringCapacity computes max(rate*threads*duration, 10000) per spec §3.
func ringCapacity(rate, threads, durationSeconds int) int {
	if rate <= 0 {
		return ringMinCapacity
	}
	c := rate * threads * durationSeconds
	if c < ringMinCapacity {
		return ringMinCapacity
	}
	return c
}
