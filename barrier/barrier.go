// Package barrier provides a reusable rendezvous point for a fixed group of
// goroutines.
package barrier

import "sync"

// Barrier blocks each caller of Wait until all participants have arrived. The
// last arrival runs a callback before anyone is released, which is how the
// scheduler runs its single-threaded bookkeeping between parallel phases. A
// generation counter makes the barrier immediately reusable for the next
// round.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	count      int
	arrived    int
	generation uint64
}

// New creates a barrier for count participants.
func New(count int) *Barrier {
	b := &Barrier{count: count}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until count goroutines have called it. onLast, if non-nil, is
// executed exactly once per round, by the final arrival, before any waiter is
// released.
func (b *Barrier) Wait(onLast func()) {
	b.mu.Lock()

	gen := b.generation
	b.arrived++
	if b.arrived == b.count {
		if onLast != nil {
			onLast()
		}
		b.arrived = 0
		b.generation++
		b.mu.Unlock()
		b.cond.Broadcast()
		return
	}

	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
