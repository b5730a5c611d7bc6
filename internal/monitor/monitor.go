// Package monitor implements the Monitor (spec component C7): periodically
// reads the Stats Array and prints an incremental line; on deadline it
// prints a terminal summary. Report shapes follow spec §4.7 exactly; the
// surrounding Report/ReportSummary split and the emitted structured record
// alongside the plain-text lines are grounded in the teacher's
// internal/metrics/metrics.go Report/ReportSummary/ReportWithContext split.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/elchinoo/sqlstorm/internal/logging"
	"github.com/elchinoo/sqlstorm/internal/stats"
)

// Barrier mirrors worker.Barrier; the Monitor awaits the same start
// rendezvous as every worker (spec §4.8: "threads + 1").
type Barrier interface {
	Await()
}

// Monitor periodically reports the Stats Array's state while the run is
// active, then prints a terminal summary.
type Monitor struct {
	Stats   *stats.Array
	Barrier Barrier
	Logger  logging.EngineLogger

	ReportPeriod time.Duration
	Deadline     time.Time // run deadline + 100ms, per spec §4.7/§5
	Threads      int

	// Print receives each rendered report line (incremental and final).
	// Defaults to writing through Logger.Info if nil.
	Print func(line string)
}

// Run awaits the barrier, then sleeps ReportPeriod and emits an incremental
// line until Deadline, at which point it emits the terminal summary and
// returns.
func (m *Monitor) Run(ctx context.Context) {
	m.Barrier.Await()

	ticker := time.NewTicker(m.ReportPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.printFinal()
			return
		case now := <-ticker.C:
			if now.After(m.Deadline) || now.Equal(m.Deadline) {
				m.printFinal()
				return
			}
			m.printIncremental()
		}
	}
}

// printIncremental renders spec §4.7's fixed incremental-line shape:
//
//	work=OPS/s; time=TOTAL_MS; ave latency=LATENCY/OPS ms; ave tx=TX_TIME/TX_COUNT ms
func (m *Monitor) printIncremental() {
	start := m.Stats.Get(stats.StartTime)
	end := m.Stats.Get(stats.EndTime)
	txCount := m.Stats.Get(stats.TxCount)
	opsCount := m.Stats.Get(stats.OpsCount)
	latencyTime := m.Stats.Get(stats.LatencyTime)
	txTime := m.Stats.Get(stats.TxTime)

	totalMs := float64(end-start) / 1e6
	opsPerSec := ratePerSecond(opsCount, end-start)
	aveLatencyMs := safeDivF(float64(latencyTime)/1e6, opsCount)
	aveTxMs := safeDivF(float64(txTime)/1e6, txCount)

	line := fmt.Sprintf("work=%.2f/s; time=%.1fms; ave latency=%.3fms; ave tx=%.3fms",
		opsPerSec, totalMs, aveLatencyMs, aveTxMs)
	m.emit(line)
}

// printFinal renders the terminal summary: totals, average sleep per
// worker, and any non-zero abort counts (spec §4.7).
func (m *Monitor) printFinal() {
	start := m.Stats.Get(stats.StartTime)
	end := m.Stats.Get(stats.EndTime)
	txCount := m.Stats.Get(stats.TxCount)
	opsCount := m.Stats.Get(stats.OpsCount)
	rowCount := m.Stats.Get(stats.RowCount)
	latencyTime := m.Stats.Get(stats.LatencyTime)
	txTime := m.Stats.Get(stats.TxTime)
	inactiveTime := m.Stats.Get(stats.InactiveTime)
	abortConflict := m.Stats.Get(stats.AbortConflict)
	abortDeadlock := m.Stats.Get(stats.AbortDeadlock)

	totalMs := float64(end-start) / 1e6
	opsPerSec := ratePerSecond(opsCount, end-start)
	aveLatencyMs := safeDivF(float64(latencyTime)/1e6, opsCount)
	aveTxMs := safeDivF(float64(txTime)/1e6, txCount)
	sleepMs := safeDivF(float64(inactiveTime)/1e6, int64(m.Threads))

	m.emit(fmt.Sprintf("final: tx=%d ops=%d rows=%d time=%.1fms work=%.2f/s ave latency=%.3fms ave tx=%.3fms sleep=%.3fms",
		txCount, opsCount, rowCount, totalMs, opsPerSec, aveLatencyMs, aveTxMs, sleepMs))

	if abortConflict > 0 || abortDeadlock > 0 {
		m.emit(fmt.Sprintf("aborts: conflict=%d deadlock=%d", abortConflict, abortDeadlock))
	}

	// Supplemented feature: the same totals as one structured record
	// alongside the fixed plain-text shapes above, so the report is
	// greppable without changing what §4.7 prints.
	m.Logger.Info("run complete", m.Stats.Fields()...)
}

func (m *Monitor) emit(line string) {
	if m.Print != nil {
		m.Print(line)
		return
	}
	m.Logger.Info(line)
}

func ratePerSecond(count, ns int64) float64 {
	if ns <= 0 {
		return 0
	}
	return float64(count) / (float64(ns) / 1e9)
}

func safeDivF(numerator float64, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / float64(denominator)
}
