package physics

import (
	"runtime"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/embervale/physics/entity"
	"github.com/embervale/physics/world"
)

func TestGetLineOfSightCachesResult(t *testing.T) {
	index := newMockIndex(true)
	s := New(index, Options{Solver: &mockSolver{}, NumThreads: 0})
	defer s.Close()

	a := entity.NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	b := entity.NewActor(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	if !s.GetLineOfSight(a, b) {
		t.Fatal("empty index must give line of sight")
	}
	rays := index.rayTests.Load()

	// Repeated queries within the expiry window serve the cache: same result,
	// no new ray test.
	if !s.GetLineOfSight(a, b) {
		t.Fatal("cached result changed")
	}
	if got := index.rayTests.Load(); got != rays {
		t.Fatalf("cache hit performed %d new ray tests", got-rays)
	}
}

func TestGetLineOfSightPairIsUnordered(t *testing.T) {
	index := newMockIndex(true)
	s := New(index, Options{Solver: &mockSolver{}, NumThreads: 0})
	defer s.Close()

	a := entity.NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	b := entity.NewActor(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	s.GetLineOfSight(a, b)
	rays := index.rayTests.Load()

	s.GetLineOfSight(b, a)
	if got := index.rayTests.Load(); got != rays {
		t.Fatal("swapped pair missed the cache")
	}
}

func TestGetLineOfSightBlocked(t *testing.T) {
	index := newMockIndex(true)
	index.rayHit = func(from, to mgl32.Vec3, filter world.Filter) (world.RayHit, bool) {
		return world.RayHit{Point: from.Add(to.Sub(from).Mul(0.5))}, true
	}
	s := New(index, Options{Solver: &mockSolver{}, NumThreads: 0})
	defer s.Close()

	a := entity.NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	b := entity.NewActor(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	if s.GetLineOfSight(a, b) {
		t.Fatal("blocked ray must report no line of sight")
	}
}

func TestLOSCacheEviction(t *testing.T) {
	index := newMockIndex(true)
	s := New(index, Options{Solver: &mockSolver{}, NumThreads: 1, LOSCacheExpiry: 2})

	a := entity.NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	b := entity.NewActor(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	s.GetLineOfSight(a, b)

	// Every submitted frame runs one refresh pass; the entry ages past the
	// expiry on the fourth and is removed in the post-simulation barrier.
	for frame := uint64(1); frame <= 4; frame++ {
		s.SubmitFrame(nil, nil, 0, frame)
	}
	s.Close()

	if got := len(s.losCache.entries); got != 0 {
		t.Fatalf("expected the aged-out entry to be evicted, %d entries remain", got)
	}
}

func TestLOSCacheRefreshKeepsFreshEntries(t *testing.T) {
	index := newMockIndex(true)
	s := New(index, Options{Solver: &mockSolver{}, NumThreads: 1, LOSCacheExpiry: 10})

	a := entity.NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	b := entity.NewActor(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	s.GetLineOfSight(a, b)

	for frame := uint64(1); frame <= 3; frame++ {
		s.SubmitFrame(nil, nil, 0, frame)
	}
	s.Close()

	if got := len(s.losCache.entries); got != 1 {
		t.Fatalf("entry within the expiry window must survive, got %d entries", got)
	}

	// The cache only holds weak references; keep the actors reachable until
	// the entry count has been checked.
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestLOSCacheSyncModeEvictsImmediately(t *testing.T) {
	index := newMockIndex(true)
	s := New(index, Options{Solver: &mockSolver{}, NumThreads: 0, LOSCacheExpiry: 30})
	defer s.Close()

	a := entity.NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	b := entity.NewActor(mgl32.Vec3{10, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	s.GetLineOfSight(a, b)

	// Without workers the configured expiry is ignored: entries only live
	// until the next frame's refresh.
	s.SubmitFrame(nil, nil, float32(s.defaultStep), 1)
	s.SubmitFrame(nil, nil, float32(s.defaultStep), 2)

	if got := len(s.losCache.entries); got != 0 {
		t.Fatalf("sync mode must expire entries immediately, %d remain", got)
	}
}
