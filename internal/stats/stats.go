// Package stats implements the fixed-width array of atomically updated
// counters shared between every worker and the monitor (spec component C5).
package stats

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Index identifies one slot of the Stats Array. Slots are nanosecond-scale
// wide counters except where noted.
type Index int

const (
	// StartTime is set once via compare-and-swap from 0 to the nanosecond
	// timestamp the first worker begins its run loop.
	StartTime Index = iota
	// EndTime is overwritten (plain store, not max) at the end of every
	// worker transaction; after the run it holds the last transaction's end.
	EndTime
	// OpsCount is incremented by queryPerTx on every transaction whose
	// statements all executed, just before its commit is attempted.
	OpsCount
	// RowCount accumulates rows consumed by SELECT iteration.
	RowCount
	// TxCount is incremented by 1 on every transaction whose statements all
	// executed, just before its commit is attempted.
	TxCount
	// LatencyTime accumulates per-operation dispatch-to-return time.
	LatencyTime
	// InactiveTime accumulates pacing sleep time.
	InactiveTime
	// OpsTime accumulates per-operation elapsed time (same window as
	// LatencyTime but kept separate per spec so the two may diverge under
	// future instrumentation).
	OpsTime
	// TxTime accumulates whole-transaction wall-clock time, connection
	// acquisition through commit.
	TxTime
	// AbortConflict counts rollback exceptions whose message does not
	// contain "deadlock".
	AbortConflict
	// AbortDeadlock counts rollback exceptions whose message contains
	// "deadlock".
	AbortDeadlock

	numIndices
)

var names = [numIndices]string{
	StartTime:     "START_TIME",
	EndTime:       "END_TIME",
	OpsCount:      "OPS_COUNT",
	RowCount:      "ROW_COUNT",
	TxCount:       "TX_COUNT",
	LatencyTime:   "LATENCY_TIME",
	InactiveTime:  "INACTIVE_TIME",
	OpsTime:       "OPS_TIME",
	TxTime:        "TX_TIME",
	AbortConflict: "ABORT_CONFLICT",
	AbortDeadlock: "ABORT_DEADLOCK",
}

// String implements fmt.Stringer so slots read naturally in log fields.
func (i Index) String() string {
	if i < 0 || i >= numIndices {
		return "UNKNOWN"
	}
	return names[i]
}

// Array is the lock-free counter array. The zero value is ready to use: all
// slots start at 0. No ordering guarantee is made or required between slots;
// a reader may observe a partially-applied multi-slot update from a worker
// (spec §4.5/§5) — acceptable for a coarse-grained rate report.
type Array struct {
	slots [numIndices]atomic.Int64
}

// New returns a ready-to-use, zeroed Stats Array.
func New() *Array {
	return &Array{}
}

// Add atomically adds delta to the slot and returns the new value.
func (a *Array) Add(i Index, delta int64) int64 {
	return a.slots[i].Add(delta)
}

// Increment is Add(i, 1).
func (a *Array) Increment(i Index) int64 {
	return a.slots[i].Add(1)
}

// Set stores v into the slot unconditionally.
func (a *Array) Set(i Index, v int64) {
	a.slots[i].Store(v)
}

// Get reads the current value of the slot.
func (a *Array) Get(i Index) int64 {
	return a.slots[i].Load()
}

// CompareAndSwap performs slot-level CAS. Used by the worker that wins the
// race to set StartTime from 0.
func (a *Array) CompareAndSwap(i Index, old, new int64) bool {
	return a.slots[i].CompareAndSwap(old, new)
}

// Fields renders every slot as a zap field, for structured-log snapshots
// (§ supplemented feature: one structured record alongside the plain-text
// report).
func (a *Array) Fields() []zap.Field {
	fields := make([]zap.Field, 0, numIndices)
	for i := Index(0); i < numIndices; i++ {
		fields = append(fields, zap.Int64(i.String(), a.Get(i)))
	}
	return fields
}
