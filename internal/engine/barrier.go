package engine

import "go.uber.org/atomic"

// Barrier is a one-shot rendezvous: every party calls Await exactly once;
// none proceed past it until all n parties have called it (spec §4.8/§9 —
// "a start barrier with one extra slot for the monitor"; "any equivalent
// primitive... is fine").
type Barrier struct {
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

// NewBarrier returns a Barrier sized for n parties.
func NewBarrier(n int) *Barrier {
	return &Barrier{n: int32(n), release: make(chan struct{})}
}

// Await blocks until all n parties have called Await.
func (b *Barrier) Await() {
	if b.arrived.Add(1) == b.n {
		close(b.release)
		return
	}
	<-b.release
}
