package physics

import (
	"encoding/binary"
	"sync/atomic"
	"weak"

	"github.com/sasha-s/go-deadlock"
	"github.com/zeebo/xxh3"

	"github.com/embervale/physics/entity"
	"github.com/embervale/physics/game"
	"github.com/embervale/physics/world"
)

// losRequest caches the line-of-sight result between one unordered pair of
// actors. The actor references are weak so the cache never keeps a removed
// actor alive.
type losRequest struct {
	actors [2]weak.Pointer[entity.Actor]
	key    uint64
	result bool
	// age counts frames since the last cache hit; entries past the expiry
	// are marked stale and removed after the frame.
	age   int
	stale bool
}

// losPairKey hashes an unordered actor pair into a cache key.
func losPairKey(a, b *entity.Actor) uint64 {
	lo, hi := a.ID(), b.ID()
	if lo > hi {
		lo, hi = hi, lo
	}

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], lo)
	binary.LittleEndian.PutUint64(buf[8:], hi)
	return xxh3.Hash(buf[:])
}

// losCache is the bounded set of pairwise line-of-sight results. Lookups and
// eviction take the lock exclusively; the bulk per-frame refresh runs in all
// workers under the shared lock, handing out entries through an atomic job
// cursor.
type losCache struct {
	mu      deadlock.RWMutex
	expiry  int
	entries []*losRequest
	index   map[uint64]*losRequest
	nextJob atomic.Int32
}

func newLOSCache(expiry int) *losCache {
	return &losCache{
		expiry: expiry,
		index:  make(map[uint64]*losRequest),
	}
}

// removeStale drops every entry marked stale by the last refresh pass. Runs
// in the post-simulation barrier callback, after all refresh work finished.
func (c *losCache) removeStale() {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, req := range c.entries {
		if req.stale {
			delete(c.index, req.key)
			continue
		}
		kept = append(kept, req)
	}
	c.entries = kept
}

// clear empties the cache. Used on simulation resets.
func (c *losCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	c.index = make(map[uint64]*losRequest)
	c.nextJob.Store(0)
}

// GetLineOfSight reports whether nothing sight-blocking stands between the
// two actors. Results are cached until either actor goes away or the entry
// ages out; a cache hit resets the entry's age. Safe to call at any time from
// the owning thread.
func (s *TaskScheduler) GetLineOfSight(a, b *entity.Actor) bool {
	c := s.losCache

	c.mu.Lock()
	defer c.mu.Unlock()

	key := losPairKey(a, b)
	if req, ok := c.index[key]; ok {
		req.age = 0
		return req.result
	}

	req := &losRequest{
		actors: [2]weak.Pointer[entity.Actor]{weak.Make(a), weak.Make(b)},
		key:    key,
		result: s.hasLineOfSight(a, b),
	}
	c.entries = append(c.entries, req)
	c.index[key] = req
	return req.result
}

// hasLineOfSight performs the underlying ray test between the actors' eye
// positions, filtered to sight-blocking categories only.
func (s *TaskScheduler) hasLineOfSight(a, b *entity.Actor) bool {
	from, to := a.EyePosition(), b.EyePosition()

	hit := false
	s.guard.Read(func(index world.Index) {
		_, hit = index.RayTest(from, to, world.Filter{Group: 0xFF, Mask: game.ColSight})
	})
	return !hit
}

// refreshLOSCache ages and recomputes every cached entry. Invoked by all
// workers after the final step of a frame, splitting entries through the
// shared job cursor; entries whose actors no longer resolve or whose age
// passed the expiry are marked stale for removal in the post-simulation
// barrier.
func (s *TaskScheduler) refreshLOSCache() {
	c := s.losCache

	c.mu.RLock()
	defer c.mu.RUnlock()

	numLOS := int32(len(c.entries))
	for {
		job := c.nextJob.Add(1) - 1
		if job >= numLOS {
			return
		}

		req := c.entries[job]
		a1 := req.actors[0].Value()
		a2 := req.actors[1].Value()

		age := req.age
		req.age++
		if age > c.expiry || a1 == nil || a2 == nil {
			req.stale = true
		} else {
			req.result = s.hasLineOfSight(a1, a2)
		}
	}
}
