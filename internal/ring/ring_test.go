package ring

import "testing"

func TestGetSleepTimeEmptyOrSingle(t *testing.T) {
	h := New(100)
	if got := h.GetSleepTime(10_000_000); got != 0 {
		t.Errorf("empty history: GetSleepTime = %d, want 0", got)
	}
	h.Add(0, 5_000_000)
	if got := h.GetSleepTime(10_000_000); got != 0 {
		t.Errorf("single entry: GetSleepTime = %d, want 0", got)
	}
}

// TestGetSleepTimeCatchUp is the spec's S5 scenario: capacity 100, 50 adds of
// 5ms each, target 10ms -> 250ms sleep.
func TestGetSleepTimeCatchUp(t *testing.T) {
	h := New(100)
	const ms = int64(1_000_000)
	for i := int64(0); i < 50; i++ {
		h.Add(i*5*ms, (i*5+5)*ms)
	}

	got := h.GetSleepTime(10 * ms)
	want := int64(250) * ms
	if got != want {
		t.Errorf("GetSleepTime = %d, want %d", got, want)
	}
}

func TestGetSleepTimeAboveTargetIsZero(t *testing.T) {
	h := New(100)
	const ms = int64(1_000_000)
	for i := int64(0); i < 10; i++ {
		h.Add(i*20*ms, (i*20+20)*ms)
	}
	if got := h.GetSleepTime(10 * ms); got != 0 {
		t.Errorf("GetSleepTime = %d, want 0 (already slower than target)", got)
	}
}

func TestSizeNeverExceedsCapacity(t *testing.T) {
	h := New(10)
	for i := 0; i < 25; i++ {
		h.Add(int64(i), int64(i+1))
	}
	if got := h.Size(); got != 10 {
		t.Errorf("Size() = %d, want capacity 10", got)
	}
}

func TestAddOverwritesOldestOnceFull(t *testing.T) {
	h := New(3)
	h.Add(1, 2)
	h.Add(3, 4)
	h.Add(5, 6)
	h.Add(7, 8) // overwrites (1,2)

	if got := h.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	// After overwrite, the oldest surviving start is 3 and the newest end is 8.
	got := h.GetSleepTime(0)
	if got != 0 {
		t.Errorf("GetSleepTime with target 0 = %d, want 0", got)
	}
}
