package world

import (
	"github.com/sasha-s/go-deadlock"
)

// Guard arbitrates access to a shared collision index between the owning
// thread and the simulation workers. When the index supports concurrent
// readers, queries and per-actor integration lock shared so they can overlap;
// mutations always lock exclusive. When it does not, every access locks
// exclusive and all physics work serializes. The capability is probed once at
// construction and fixed for the guard's lifetime.
type Guard struct {
	mu         deadlock.RWMutex
	index      Index
	concurrent bool
}

func NewGuard(index Index) *Guard {
	return &Guard{
		index:      index,
		concurrent: index.ConcurrentReads(),
	}
}

// Concurrent reports whether read access locks shared.
func (g *Guard) Concurrent() bool {
	return g.concurrent
}

// Read runs fn with read-only access to the index, locked shared when the
// index supports it and exclusive otherwise.
func (g *Guard) Read(fn func(index Index)) {
	if g.concurrent {
		g.mu.RLock()
		defer g.mu.RUnlock()
	} else {
		g.mu.Lock()
		defer g.mu.Unlock()
	}

	fn(g.index)
}

// Write runs fn with exclusive access to the index.
func (g *Guard) Write(fn func(index Index)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fn(g.index)
}
