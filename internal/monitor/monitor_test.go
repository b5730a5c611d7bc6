package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elchinoo/sqlstorm/internal/logging"
	"github.com/elchinoo/sqlstorm/internal/stats"
)

type noopBarrier struct{}

func (noopBarrier) Await() {}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) add(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *lineSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func TestMonitorPrintsIncrementalThenFinal(t *testing.T) {
	s := stats.New()
	s.Set(stats.StartTime, 0)
	s.Set(stats.EndTime, int64(500*time.Millisecond))
	s.Add(stats.TxCount, 10)
	s.Add(stats.OpsCount, 10)

	sink := &lineSink{}
	m := &Monitor{
		Stats:        s,
		Barrier:      noopBarrier{},
		Logger:       logging.NewDefaultLogger(),
		ReportPeriod: 20 * time.Millisecond,
		Deadline:     time.Now().Add(60 * time.Millisecond),
		Threads:      4,
		Print:        sink.add,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	lines := sink.snapshot()
	if len(lines) == 0 {
		t.Fatal("expected at least one report line")
	}
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "final:") {
		t.Errorf("last line = %q, want a final: summary", last)
	}
	for _, l := range lines[:len(lines)-1] {
		if !strings.HasPrefix(l, "work=") {
			t.Errorf("incremental line = %q, want work= prefix", l)
		}
	}
}

func TestMonitorFinalReportsAborts(t *testing.T) {
	s := stats.New()
	s.Add(stats.AbortConflict, 3)
	s.Add(stats.AbortDeadlock, 1)

	sink := &lineSink{}
	m := &Monitor{
		Stats:        s,
		Barrier:      noopBarrier{},
		Logger:       logging.NewDefaultLogger(),
		ReportPeriod: time.Hour,
		Deadline:     time.Now().Add(10 * time.Millisecond),
		Threads:      1,
		Print:        sink.add,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	found := false
	for _, l := range sink.snapshot() {
		if strings.Contains(l, "aborts: conflict=3 deadlock=1") {
			found = true
		}
	}
	if !found {
		t.Error("expected an aborts: line reporting both counts")
	}
}
