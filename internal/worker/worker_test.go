package worker

import (
	"testing"
	"time"

	"github.com/elchinoo/sqlstorm/internal/generator"
)

func TestTargetTxTimeNs(t *testing.T) {
	if got := TargetTxTimeNs(0, 10); got != 0 {
		t.Errorf("TargetTxTimeNs(0, 10) = %d, want 0 (rate unset disables pacing)", got)
	}
	// rate=100 tx/s split across 10 threads -> each thread targets one
	// transaction every 100ms.
	got := TargetTxTimeNs(100, 10)
	want := int64(100 * time.Millisecond)
	if got != want {
		t.Errorf("TargetTxTimeNs(100, 10) = %d, want %d", got, want)
	}
}

func TestDesaturationFactor(t *testing.T) {
	cases := map[int]float64{
		0:   0,
		-5:  0,
		100: 0, // spec §9 Open Question (a): load=100 legal, 0 sleep
		50:  1.0,
		95:  5.0 / 95.0,
	}
	for load, want := range cases {
		got := DesaturationFactor(load)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("DesaturationFactor(%d) = %v, want %v", load, got, want)
		}
	}
}

func TestIsTransactionRollbackClass(t *testing.T) {
	if !isTransactionRollbackClass("40001") {
		t.Error("40001 (serialization_failure) should be class 40")
	}
	if !isTransactionRollbackClass("40P01") {
		t.Error("40P01 (deadlock_detected) should be class 40")
	}
	if isTransactionRollbackClass("08006") {
		t.Error("08006 is not class 40")
	}
}

func TestIsConnectionExceptionClass(t *testing.T) {
	if !isConnectionExceptionClass("08006") {
		t.Error("08006 should be class 08")
	}
	if isConnectionExceptionClass("40001") {
		t.Error("40001 is not class 08")
	}
}

func TestBindArgUsesFormattedStringWhenPresent(t *testing.T) {
	v := generator.Value{Kind: generator.KindInt, Int: 42, IsFmted: true, Str: "00042"}
	if got := bindArg(v); got != "00042" {
		t.Errorf("bindArg formatted = %v, want %q", got, "00042")
	}
}

func TestToPositionalSQL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"?,?,?", "$1,$2,$3"},
	}
	for _, c := range cases {
		if got := toPositionalSQL(c.in); got != c.want {
			t.Errorf("toPositionalSQL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBindArgByKindWhenUnformatted(t *testing.T) {
	cases := []struct {
		v    generator.Value
		want any
	}{
		{generator.Value{Kind: generator.KindInt, Int: 7}, int64(7)},
		{generator.Value{Kind: generator.KindString, Str: "x"}, "x"},
		{generator.Value{Kind: generator.KindBoolean, Bool: true}, true},
	}
	for _, c := range cases {
		if got := bindArg(c.v); got != c.want {
			t.Errorf("bindArg(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}
